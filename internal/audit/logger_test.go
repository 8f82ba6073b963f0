package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsdrip/dashboard/internal/util"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestLog_NeverWritesToken(t *testing.T) {
	buf := captureLog(t)

	Log(context.Background(), Event{
		Type:    EventTokenRefreshFailed,
		UID:     "uid-1",
		Email:   "operator@example.com",
		Token:   "secret-id-token",
		Details: map[string]interface{}{"attempt": 1},
	})

	assert.NotContains(t, buf.String(), "secret-id-token")
	assert.NotContains(t, buf.String(), "operator@example.com")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "token_refresh_failed", entry["event_type"])
	assert.Equal(t, "uid-1", entry["uid"])
	assert.Equal(t, util.TokenFingerprint("secret-id-token"), entry["token_fp"])
	assert.Equal(t, "o***@example.com", entry["email"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestLogFromRequest(t *testing.T) {
	buf := captureLog(t)

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")

	LogFromRequest(req, Event{Type: EventLoginFailure})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.7", entry["ip"])
	assert.Equal(t, "test-agent", entry["user_agent"])
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@b.io", maskEmail("ann@b.io"))
	assert.Equal(t, "***", maskEmail("not-an-email"))
	assert.Equal(t, "***", maskEmail("@b.io"))
}
