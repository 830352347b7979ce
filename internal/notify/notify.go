// Package notify implements the notification fan-out: email, SMS and push
// channel senders consuming one check's diff summary, each with independent
// enablement and failure isolation.
package notify

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
)

// Package-level logger specific to the notify service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "notify.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "notify", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize notify file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "notify")
		closeLogger = func() error { return nil }
	}
}

// ChannelConfig carries the per-run channel toggles and destinations read
// from the checkpoint row.
type ChannelConfig struct {
	EmailEnabled bool
	EmailTo      string
	SMSEnabled   bool
	SMSTo        string
	PushEnabled  bool
	SkipEmail    bool // silent backfill: run the pipeline but omit email
}

// Outcome reports per-channel delivery results for one dispatch.
type Outcome struct {
	EmailSent bool
	SMSSent   bool
	PushSent  bool
}

// EmailSender delivers the HTML report email.
type EmailSender interface {
	Send(ctx context.Context, summary *Summary, to string) error
}

// SMSSender delivers the short text summary.
type SMSSender interface {
	Send(ctx context.Context, summary *Summary, to string) error
}

// PushSender delivers push notifications to all eligible devices.
type PushSender interface {
	Send(ctx context.Context, summary *Summary) error
}

// Dispatcher fans one summary out across the enabled channels. Channel
// dispatches run concurrently and failures stay channel-local.
type Dispatcher struct {
	Email EmailSender
	SMS   SMSSender
	Push  PushSender
}

// Dispatch sends the summary over every enabled channel. Email fires even
// for a no-news summary; SMS and push only when new records exist. Errors
// are logged per channel and never returned: a channel failure must not
// abort its siblings or the caller's checkpoint update.
func (d *Dispatcher) Dispatch(ctx context.Context, summary *Summary, cfg *ChannelConfig) Outcome {
	var (
		outcome Outcome
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	if cfg.EmailEnabled && !cfg.SkipEmail && d.Email != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Email.Send(ctx, summary, cfg.EmailTo); err != nil {
				logger.Error("email dispatch failed", "to", cfg.EmailTo, "error", err)
				return
			}
			mu.Lock()
			outcome.EmailSent = true
			mu.Unlock()
		}()
	}

	if cfg.SMSEnabled && summary.Diff.HasNew() && d.SMS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.SMS.Send(ctx, summary, cfg.SMSTo); err != nil {
				logger.Error("sms dispatch failed", "to", cfg.SMSTo, "error", err)
				return
			}
			mu.Lock()
			outcome.SMSSent = true
			mu.Unlock()
		}()
	}

	if cfg.PushEnabled && summary.Diff.HasNew() && d.Push != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Push.Send(ctx, summary); err != nil {
				logger.Error("push dispatch failed", "error", err)
				return
			}
			mu.Lock()
			outcome.PushSent = true
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outcome
}
