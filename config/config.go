// Package config loads and validates the monitor configuration from a YAML
// file, the process environment, and command-line overrides. Precedence:
// flags > environment > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sportstiming-notifier/pkg/ticket"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	// HardMinInterval is the absolute floor for the poll interval.
	HardMinInterval = 30 * time.Second
	// RecommendedMinInterval triggers a warning (not an error) below it.
	RecommendedMinInterval = 60 * time.Second

	defaultURL      = "https://www.sportstiming.dk/event/6583/resale"
	defaultInterval = 2 * time.Minute
	defaultPause    = 1500 * time.Millisecond
)

// Config holds everything the process needs at startup.
type Config struct {
	URL         string `yaml:"url"`
	TicketRange string `yaml:"ticket_range"` // e.g. "54296-54310"
	URLTemplate string `yaml:"url_template"` // per-ticket URL, one %d verb
	Interval    string `yaml:"interval"`     // e.g. "120s"
	Pause       string `yaml:"pause"`        // inter-request pause in range mode
	NotifyAll   bool   `yaml:"notify_all"`
	LogLevel    string `yaml:"log_level"`
	ListenAddr  string `yaml:"listen_addr"` // health/status endpoint, "" disables

	Session  SessionConfig   `yaml:"session"`
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Email    *EmailConfig    `yaml:"email,omitempty"`
	SMS      *SMSConfig      `yaml:"sms,omitempty"`
	Pushover *PushoverConfig `yaml:"pushover,omitempty"`

	// Parsed values, filled during Load.
	IntervalDur time.Duration `yaml:"-"`
	PauseDur    time.Duration `yaml:"-"`
	Target      ticket.Target `yaml:"-"`
	Warnings    []string      `yaml:"-"`
}

// SessionConfig carries the optional login session cookies.
type SessionConfig struct {
	SessionID string `yaml:"session_id"` // st-sessionids2
	AuthToken string `yaml:"auth_token"` // st-auth-s2
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	BotToken string   `yaml:"bot_token"`
	ChatIDs  []string `yaml:"chat_ids"`
}

// EmailConfig configures the SMTP email channel.
type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

// SMSConfig configures the Twilio SMS channel.
type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	ToNumber   string `yaml:"to_number"`
}

// PushoverConfig configures the Pushover push channel.
type PushoverConfig struct {
	AppToken string `yaml:"app_token"`
	UserKey  string `yaml:"user_key"`
}

// Overrides are command-line values that win over file and environment.
// A nil field means the flag was not set.
type Overrides struct {
	URL         *string
	TicketRange *string
	Interval    *time.Duration
	NotifyAll   *bool
}

// Load builds the configuration. path may be empty (no config file).
func Load(path string, ov Overrides) (*Config, error) {
	// .env is a development convenience; absent files are fine and existing
	// environment variables are never overridden.
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	applyEnv(cfg)
	applyOverrides(cfg, ov)
	applyDefaults(cfg)

	if err := validateAndNormalize(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv layers environment variables over the file values. The variable
// names match the original deployment launcher so existing deployments keep
// working.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKET_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("TICKET_RANGE"); v != "" {
		cfg.TicketRange = v
	}
	if v := os.Getenv("CHECK_INTERVAL"); v != "" {
		// Bare seconds, e.g. CHECK_INTERVAL=120.
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Interval = fmt.Sprintf("%ds", secs)
		} else {
			cfg.Interval = v
		}
	}
	if v := os.Getenv("NOTIFY_ALL"); v != "" {
		cfg.NotifyAll = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv("AUTH_COOKIES"); v != "" {
		sessionID, authToken := ParseCookieString(v)
		if sessionID != "" {
			cfg.Session.SessionID = sessionID
		}
		if authToken != "" {
			cfg.Session.AuthToken = authToken
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
			ids := strings.Split(chatID, ",")
			for i := range ids {
				ids[i] = strings.TrimSpace(ids[i])
			}
			cfg.Telegram = &TelegramConfig{BotToken: token, ChatIDs: ids}
		}
	}

	if server := os.Getenv("EMAIL_SMTP_SERVER"); server != "" {
		port := 587
		if v := os.Getenv("EMAIL_SMTP_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				port = p
			}
		}
		username := os.Getenv("EMAIL_USERNAME")
		from := os.Getenv("EMAIL_FROM")
		if from == "" {
			from = username
		}
		cfg.Email = &EmailConfig{
			SMTPServer: server,
			SMTPPort:   port,
			Username:   username,
			Password:   os.Getenv("EMAIL_PASSWORD"),
			From:       from,
			To:         os.Getenv("EMAIL_TO"),
		}
	}

	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		cfg.SMS = &SMSConfig{
			AccountSID: sid,
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
			ToNumber:   os.Getenv("TWILIO_TO_NUMBER"),
		}
	}

	if token := os.Getenv("PUSHOVER_APP_TOKEN"); token != "" {
		cfg.Pushover = &PushoverConfig{
			AppToken: token,
			UserKey:  os.Getenv("PUSHOVER_USER_KEY"),
		}
	}
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.URL != nil {
		cfg.URL = *ov.URL
	}
	if ov.TicketRange != nil {
		cfg.TicketRange = *ov.TicketRange
	}
	if ov.Interval != nil {
		cfg.Interval = ov.Interval.String()
	}
	if ov.NotifyAll != nil {
		cfg.NotifyAll = *ov.NotifyAll
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if strings.TrimSpace(cfg.Interval) == "" {
		cfg.Interval = defaultInterval.String()
	}
	if strings.TrimSpace(cfg.Pause) == "" {
		cfg.Pause = defaultPause.String()
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.URLTemplate) == "" {
		cfg.URLTemplate = strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/") + "/ticket/%d"
	}
}

func validateAndNormalize(cfg *Config) error {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return fmt.Errorf("config: url %q must start with http:// or https://", cfg.URL)
	}

	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return fmt.Errorf("config: invalid interval %q: %w", cfg.Interval, err)
	}
	if interval < HardMinInterval {
		return fmt.Errorf("config: interval %s below hard minimum %s", interval, HardMinInterval)
	}
	if interval < RecommendedMinInterval {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("interval %s is below the recommended minimum %s and may trigger rate limiting", interval, RecommendedMinInterval))
	}
	cfg.IntervalDur = interval

	pause, err := time.ParseDuration(cfg.Pause)
	if err != nil {
		return fmt.Errorf("config: invalid pause %q: %w", cfg.Pause, err)
	}
	if pause < 0 {
		return fmt.Errorf("config: pause cannot be negative")
	}
	cfg.PauseDur = pause

	cfg.Target = ticket.Target{URL: cfg.URL}
	if strings.TrimSpace(cfg.TicketRange) != "" {
		start, end, err := ParseRange(cfg.TicketRange)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if strings.Count(cfg.URLTemplate, "%d") != 1 {
			return fmt.Errorf("config: url_template %q must contain exactly one %%d", cfg.URLTemplate)
		}
		cfg.Target.URLTemplate = cfg.URLTemplate
		cfg.Target.RangeStart = start
		cfg.Target.RangeEnd = end
	}

	if err := validateChannels(cfg); err != nil {
		return err
	}

	return nil
}

func validateChannels(cfg *Config) error {
	configured := 0

	if cfg.Telegram != nil {
		if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
			return errors.New("config: telegram requires bot_token and at least one chat id")
		}
		configured++
	}
	if cfg.Email != nil {
		e := cfg.Email
		if e.SMTPServer == "" || e.Username == "" || e.Password == "" || e.To == "" {
			return errors.New("config: email requires smtp_server, username, password and to")
		}
		if e.SMTPPort == 0 {
			e.SMTPPort = 587
		}
		if e.From == "" {
			e.From = e.Username
		}
		configured++
	}
	if cfg.SMS != nil {
		s := cfg.SMS
		if s.AccountSID == "" || s.AuthToken == "" || s.FromNumber == "" || s.ToNumber == "" {
			return errors.New("config: sms requires account_sid, auth_token, from_number and to_number")
		}
		configured++
	}
	if cfg.Pushover != nil {
		if cfg.Pushover.AppToken == "" || cfg.Pushover.UserKey == "" {
			return errors.New("config: pushover requires app_token and user_key")
		}
		configured++
	}

	if configured == 0 {
		return errors.New("config: no notification channel configured")
	}
	return nil
}

// Credentials returns the session cookies as domain credentials.
func (c *Config) Credentials() ticket.Credentials {
	return ticket.Credentials{
		SessionID: c.Session.SessionID,
		AuthToken: c.Session.AuthToken,
	}
}

// ParseRange parses a ticket ID range like "54296-54310". A single ID is a
// range of one.
func ParseRange(s string) (start, end int, err error) {
	s = strings.TrimSpace(s)
	first, rest, found := strings.Cut(s, "-")
	start, err = strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ticket range %q", s)
	}
	if !found {
		return start, start, nil
	}
	end, err = strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ticket range %q", s)
	}
	if start <= 0 || end < start {
		return 0, 0, fmt.Errorf("invalid ticket range %q: end must be >= start > 0", s)
	}
	return start, end, nil
}

// ParseCookieString extracts the two session cookie values from a raw
// browser Cookie header ("name=value; name=value; ...").
func ParseCookieString(raw string) (sessionID, authToken string) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "Cookie:")
	for _, pair := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "st-sessionids2":
			sessionID = strings.TrimSpace(value)
		case "st-auth-s2":
			authToken = strings.TrimSpace(value)
		}
	}
	return sessionID, authToken
}
