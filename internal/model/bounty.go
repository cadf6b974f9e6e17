package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Bounty status values with special meaning during aggregation.
// Any other string is carried through unchanged.
const (
	StatusCompleted = "completed"
	StatusClaimed   = "claimed"
	StatusSubmitted = "submitted"
)

// Bounty is one record from the bounty source. Immutable once fetched.
type Bounty struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	RewardRaw   FlexString `json:"reward"`
	Tags        Tags       `json:"tags"`
	ClaimedBy   string     `json:"claimedBy,omitempty"`
	CreatedAt   FlexTime   `json:"createdAt"`
	Payment     *Payment   `json:"payment,omitempty"`
}

// Payment carries the gross payout of a bounty in integer micro-units.
// Sources populate either GrossAmount or GrossReward.
type Payment struct {
	GrossAmount FlexString `json:"grossAmount,omitempty"`
	GrossReward FlexString `json:"grossReward,omitempty"`
}

// FlexString decodes a JSON string or number into its textual form.
// Null and non-scalar values decode to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(n.String())
	}
	return nil
}

// Float parses the value as a finite decimal number. ok is false when empty,
// malformed, NaN or infinite.
func (f FlexString) Float() (v float64, ok bool) {
	if f == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Tags decodes a JSON array of strings, skipping non-string entries.
// A missing, null or non-array value decodes to an empty set.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = nil
		return nil
	}
	out := make(Tags, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*t = out
	return nil
}

// FlexTime decodes an RFC 3339 string or a unix timestamp (seconds or
// milliseconds). Anything unparseable decodes to the zero time.
type FlexTime struct {
	time.Time
}

// millisThreshold separates unix seconds from unix milliseconds.
const millisThreshold = 1e12

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = parsed.UTC()
		}
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil
	}
	if n >= millisThreshold {
		t.Time = time.UnixMilli(int64(n)).UTC()
	} else {
		t.Time = time.Unix(int64(n), 0).UTC()
	}
	return nil
}

// MarshalJSON implements json.Marshaler. The zero time encodes as null.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// Ptr returns a pointer to the time, or nil when unset.
func (t FlexTime) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
