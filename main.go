// Command sportstiming-notifier polls a sportstiming.dk resale page (or a
// range of per-ticket resale pages) and notifies the configured channels
// when ticket availability changes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sportstiming-notifier/config"
	"sportstiming-notifier/decide"
	"sportstiming-notifier/fetch"
	"sportstiming-notifier/notify"
	"sportstiming-notifier/pkg/ticket"
	"sportstiming-notifier/scan"
	"sportstiming-notifier/schedule"
	"sportstiming-notifier/server"

	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagURL        string
	flagRange      string
	flagInterval   time.Duration
	flagSingle     bool
	flagNotifyAll  bool
	flagTestNotify bool
	flagDebug      bool
)

var rootCmd = &cobra.Command{
	Use:           "sportstiming-notifier",
	Short:         "Polls sportstiming.dk resale pages and notifies when tickets become available",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&flagURL, "url", "", "event resale page URL to check")
	rootCmd.Flags().StringVar(&flagRange, "ticket-range", "", "ticket ID range to scan, e.g. 54296-54310")
	rootCmd.Flags().DurationVar(&flagInterval, "interval", 0, "time between checks, e.g. 120s")
	rootCmd.Flags().BoolVar(&flagSingle, "single", false, "run a single check and exit")
	rootCmd.Flags().BoolVar(&flagNotifyAll, "notify-all", false, "notify on every status change, not only availability")
	rootCmd.Flags().BoolVar(&flagTestNotify, "test-notify", false, "send a test message to all configured channels and exit")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ov := config.Overrides{}
	if cmd.Flags().Changed("url") {
		ov.URL = &flagURL
	}
	if cmd.Flags().Changed("ticket-range") {
		ov.TicketRange = &flagRange
	}
	if cmd.Flags().Changed("interval") {
		ov.Interval = &flagInterval
	}
	if cmd.Flags().Changed("notify-all") {
		ov.NotifyAll = &flagNotifyAll
	}

	cfg, err := config.Load(flagConfig, ov)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, flagDebug)
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	dispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagTestNotify {
		logger.Info("Sending test notification", "channels", dispatcher.Channels())
		msg := &ticket.Message{
			Status:  ticket.StatusNoTickets,
			Subject: "Sportstiming Ticket Alert - TEST",
			Body:    "This is a test notification from your sportstiming ticket checker.",
			Links:   []string{cfg.URL},
		}
		if failed := dispatcher.Dispatch(ctx, msg); failed > 0 {
			return fmt.Errorf("test notification failed on %d channel(s)", failed)
		}
		return nil
	}

	fetcher := fetch.New(&http.Client{Timeout: 30 * time.Second}, cfg.Credentials(), logger)
	scanner := scan.New(fetcher, scan.NewBackoff(logger), cfg.PauseDur, logger)
	engine := decide.New(cfg.URL, logger)

	loop := &schedule.Loop{
		Scanner:    scanner,
		Engine:     engine,
		Dispatcher: dispatcher,
		Target:     cfg.Target,
		Interval:   cfg.IntervalDur,
		NotifyAll:  cfg.NotifyAll,
		Single:     flagSingle,
		Logger:     logger,
	}

	if cfg.ListenAddr != "" {
		srv := server.New(logger)
		loop.OnCycle = srv.Record
		go func() {
			if err := srv.ListenAndServe(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
				logger.Error("Status server failed", "error", err)
			}
		}()
	}

	return loop.Run(ctx)
}

func newLogger(level string, debug bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func buildDispatcher(cfg *config.Config, logger *slog.Logger) (*notify.Dispatcher, error) {
	var channels []notify.Notifier

	if cfg.Telegram != nil {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, false, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		channels = append(channels, tg)
	}
	if cfg.Email != nil {
		e := cfg.Email
		channels = append(channels, notify.NewEmail(e.SMTPServer, e.SMTPPort, e.Username, e.Password, e.From, e.To, logger))
	}
	if cfg.SMS != nil {
		s := cfg.SMS
		channels = append(channels, notify.NewSMS(s.AccountSID, s.AuthToken, s.FromNumber, s.ToNumber, logger))
	}
	if cfg.Pushover != nil {
		channels = append(channels, notify.NewPushover(cfg.Pushover.AppToken, cfg.Pushover.UserKey, logger))
	}

	return notify.NewDispatcher(logger, channels...), nil
}
