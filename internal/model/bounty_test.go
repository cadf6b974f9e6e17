package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hyoka/internal/model"
)

func TestBounty_DecodesMixedShapes(t *testing.T) {
	raw := `{
		"id": 17,
		"title": "Fix bug",
		"status": "completed",
		"reward": "5 USDC",
		"tags": ["rust", 3, "", " go "],
		"claimedBy": "0xABC",
		"createdAt": "2025-03-01T12:00:00Z",
		"payment": {"grossAmount": 5000000}
	}`

	var b model.Bounty
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	assert.Equal(t, model.FlexString("17"), b.ID)
	assert.Equal(t, model.Tags{"rust", "go"}, b.Tags)
	assert.Equal(t, "0xABC", b.ClaimedBy)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), b.CreatedAt.Time)
	require.NotNil(t, b.Payment)
	amount, ok := b.Payment.GrossAmount.Float()
	require.True(t, ok)
	assert.Equal(t, 5000000.0, amount)
	_, ok = b.Payment.GrossReward.Float()
	assert.False(t, ok, "absent grossReward must not parse")
}

func TestBounty_MalformedOptionalFieldsDegrade(t *testing.T) {
	raw := `{"id":"9","status":"claimed","tags":"not-a-list","createdAt":{"nested":true},"payment":{"grossAmount":{"x":1}}}`

	var b model.Bounty
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	assert.Empty(t, b.Title)
	assert.Empty(t, b.Tags)
	assert.True(t, b.CreatedAt.IsZero())
	assert.Nil(t, b.CreatedAt.Ptr())
	require.NotNil(t, b.Payment)
	assert.Equal(t, model.FlexString(""), b.Payment.GrossAmount)
}

func TestFlexTime_UnixSecondsAndMillis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"seconds", `1700000000`, time.Unix(1700000000, 0).UTC()},
		{"millis", `1700000000123`, time.UnixMilli(1700000000123).UTC()},
		{"null", `null`, time.Time{}},
		{"garbage string", `"yesterday"`, time.Time{}},
		{"negative", `-5`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft model.FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ft))
			assert.True(t, tt.want.Equal(ft.Time), "got %v want %v", ft.Time, tt.want)
		})
	}
}

func TestFlexTime_ZeroMarshalsAsNull(t *testing.T) {
	out, err := json.Marshal(model.FlexTime{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestFlexString_Float(t *testing.T) {
	v, ok := model.FlexString("2500000").Float()
	assert.True(t, ok)
	assert.Equal(t, 2500000.0, v)

	_, ok = model.FlexString("").Float()
	assert.False(t, ok)

	_, ok = model.FlexString("12abc").Float()
	assert.False(t, ok)

	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity", "1e400"} {
		_, ok = model.FlexString(in).Float()
		assert.False(t, ok, "%q must not parse", in)
	}
}

func TestBounty_NonFiniteAmountDegrades(t *testing.T) {
	raw := `{"id":"1","status":"completed","claimedBy":"0xabc","payment":{"grossAmount":"NaN","grossReward":"Infinity"}}`

	var b model.Bounty
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	require.NotNil(t, b.Payment)
	_, ok := b.Payment.GrossAmount.Float()
	assert.False(t, ok)
	_, ok = b.Payment.GrossReward.Float()
	assert.False(t, ok)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", model.NormalizeAddress("  0xAbCdEf "))
	assert.Equal(t, "", model.NormalizeAddress("   "))
}

func TestOnChainReputation_HasFootprint(t *testing.T) {
	assert.False(t, model.OnChainReputation{Address: "0x1"}.HasFootprint())
	assert.True(t, model.OnChainReputation{ReputationScore: 1}.HasFootprint())
	assert.True(t, model.OnChainReputation{Feedback: []model.Feedback{{Score: -1}}}.HasFootprint())
}
