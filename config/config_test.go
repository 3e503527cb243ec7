package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearMonitorEnv blanks every variable the loader reads so host leakage
// cannot skew a test.
func clearMonitorEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TICKET_URL", "TICKET_RANGE", "CHECK_INTERVAL", "NOTIFY_ALL",
		"LOG_LEVEL", "LISTEN_ADDR", "AUTH_COOKIES",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"EMAIL_SMTP_SERVER", "EMAIL_SMTP_PORT", "EMAIL_USERNAME",
		"EMAIL_PASSWORD", "EMAIL_FROM", "EMAIL_TO",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
		"TWILIO_FROM_NUMBER", "TWILIO_TO_NUMBER",
		"PUSHOVER_APP_TOKEN", "PUSHOVER_USER_KEY",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

const minimalYAML = `
url: https://www.sportstiming.dk/event/6583/resale
interval: 120s
telegram:
  bot_token: "123:abc"
  chat_ids: ["100200300"]
`

func TestLoadMinimal(t *testing.T) {
	clearMonitorEnv(t)

	cfg, err := Load(writeConfig(t, minimalYAML), Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.IntervalDur)
	assert.Equal(t, 1500*time.Millisecond, cfg.PauseDur)
	assert.False(t, cfg.Target.RangeMode())
	assert.Empty(t, cfg.Warnings)
	require.NotNil(t, cfg.Telegram)
	assert.Equal(t, []string{"100200300"}, cfg.Telegram.ChatIDs)
}

func TestLoadRangeMode(t *testing.T) {
	clearMonitorEnv(t)

	cfg, err := Load(writeConfig(t, minimalYAML+"ticket_range: \"54296-54310\"\n"), Overrides{})
	require.NoError(t, err)

	require.True(t, cfg.Target.RangeMode())
	assert.Equal(t, 54296, cfg.Target.RangeStart)
	assert.Equal(t, 54310, cfg.Target.RangeEnd)
	assert.Equal(t,
		"https://www.sportstiming.dk/event/6583/resale/ticket/54296",
		cfg.Target.TicketURL(54296))
}

func TestLoadIntervalFloor(t *testing.T) {
	clearMonitorEnv(t)

	_, err := Load(writeConfig(t, `
url: https://example.test/resale
interval: 10s
telegram:
  bot_token: "123:abc"
  chat_ids: ["1"]
`), Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hard minimum")
}

func TestLoadIntervalWarning(t *testing.T) {
	clearMonitorEnv(t)

	cfg, err := Load(writeConfig(t, `
url: https://example.test/resale
interval: 45s
telegram:
  bot_token: "123:abc"
  chat_ids: ["1"]
`), Overrides{})
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "recommended minimum")
}

func TestLoadNoChannelFails(t *testing.T) {
	clearMonitorEnv(t)

	_, err := Load(writeConfig(t, "url: https://example.test/resale\ninterval: 120s\n"), Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notification channel")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("CHECK_INTERVAL", "300")
	t.Setenv("TICKET_RANGE", "100-105")
	t.Setenv("NOTIFY_ALL", "true")

	cfg, err := Load(writeConfig(t, minimalYAML), Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.IntervalDur)
	assert.True(t, cfg.NotifyAll)
	assert.Equal(t, 100, cfg.Target.RangeStart)
	assert.Equal(t, 105, cfg.Target.RangeEnd)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("CHECK_INTERVAL", "300")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "1, 2,3")

	interval := 90 * time.Second
	cfg, err := Load("", Overrides{Interval: &interval})
	require.NoError(t, err)

	assert.Equal(t, interval, cfg.IntervalDur)
	require.NotNil(t, cfg.Telegram)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Telegram.ChatIDs)
}

func TestLoadEmailFromEnv(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("EMAIL_SMTP_SERVER", "smtp.gmail.com")
	t.Setenv("EMAIL_USERNAME", "me@gmail.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("EMAIL_TO", "you@example.com")

	cfg, err := Load("", Overrides{})
	require.NoError(t, err)

	require.NotNil(t, cfg.Email)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "me@gmail.com", cfg.Email.From, "from defaults to username")
}

func TestLoadAuthCookiesFromEnv(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	t.Setenv("AUTH_COOKIES", "cookies_allowed=required; st-lang=da-DK; st-sessionids2=1cce6b2e; st-auth-s2=eyJhbGci")

	cfg, err := Load("", Overrides{})
	require.NoError(t, err)

	creds := cfg.Credentials()
	assert.Equal(t, "1cce6b2e", creds.SessionID)
	assert.Equal(t, "eyJhbGci", creds.AuthToken)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{"54296-54310", 54296, 54310, false},
		{" 100 - 105 ", 100, 105, false},
		{"42", 42, 42, false},
		{"105-100", 0, 0, true},
		{"0-5", 0, 0, true},
		{"abc", 0, 0, true},
		{"100-", 0, 0, true},
	}

	for _, tt := range tests {
		start, end, err := ParseRange(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.start, start, "input %q", tt.in)
		assert.Equal(t, tt.end, end, "input %q", tt.in)
	}
}

func TestParseCookieString(t *testing.T) {
	session, auth := ParseCookieString("Cookie: st-sessionids2=abc; other=x; st-auth-s2=def")
	assert.Equal(t, "abc", session)
	assert.Equal(t, "def", auth)

	session, auth = ParseCookieString("no-session-here=1")
	assert.Empty(t, session)
	assert.Empty(t, auth)
}

func TestLoadRejectsBadURL(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	t.Setenv("TICKET_URL", "ftp://example.test")

	_, err := Load("", Overrides{})
	require.Error(t, err)
}
