package bounty

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("unexpected accept header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListBounties(t *testing.T) {
	srv := serve(t, http.StatusOK, `[
		{"id":"1","title":"Fix bug","status":"completed","claimedBy":"0xABC","payment":{"grossAmount":"5000000"},"tags":["rust"]},
		{"id":2,"title":"Docs","status":"claimed","claimedBy":"0xdef","tags":[]},
		{"id":"3","status":"open"}
	]`)

	c := NewClient(Config{URL: srv.URL}, testLogger())
	bounties, err := c.ListBounties(context.Background())
	require.NoError(t, err)
	require.Len(t, bounties, 3)

	assert.Equal(t, "Fix bug", bounties[0].Title)
	assert.Equal(t, "0xABC", bounties[0].ClaimedBy)
	require.NotNil(t, bounties[0].Payment)
	assert.EqualValues(t, "5000000", bounties[0].Payment.GrossAmount)
	assert.EqualValues(t, "2", bounties[1].ID)
	assert.Empty(t, bounties[2].ClaimedBy)
}

func TestListBounties_DropsUndecodableEntries(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"id":"1","title":"ok"}, {"id":"2","title":{"bad":true}}, 42]`)

	c := NewClient(Config{URL: srv.URL}, testLogger())
	bounties, err := c.ListBounties(context.Background())
	require.NoError(t, err)
	require.Len(t, bounties, 1)
	assert.Equal(t, "ok", bounties[0].Title)
}

func TestListBounties_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"server error", http.StatusBadGateway, "upstream down", "status 502"},
		{"not json", http.StatusOK, "<html>maintenance</html>", "decode response"},
		{"object instead of array", http.StatusOK, `{"bounties":[]}`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			c := NewClient(Config{URL: srv.URL}, testLogger())
			_, err := c.ListBounties(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestListBounties_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, testLogger())
	_, err := c.ListBounties(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounty: send request")
}

func TestListBounties_Unreachable(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1/bounties"}, testLogger())
	_, err := c.ListBounties(context.Background())
	require.Error(t, err)
}
