// Package checker orchestrates one violation check run: fetch settings,
// fetch upstream, diff, persist, notify, update the checkpoint.
package checker

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/datastore"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/notify"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// Package-level logger specific to the checker service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "checker.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "checker", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize checker file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "checker")
		closeLogger = func() error { return nil }
	}
}

// leaseTTL bounds how long a crashed run can block the next one.
const leaseTTL = 5 * time.Minute

// ErrCheckDisabled is returned when the checkpoint row has violation
// checks switched off.
var ErrCheckDisabled = errors.Newf("violation checks are disabled").Component("checker").Category(errors.CategoryState).Build()

// UpstreamClient is the slice of the WPRDC client the runner needs.
type UpstreamClient interface {
	LowerBound(latest *time.Time, fullSync bool) string
	FetchViolations(ctx context.Context, parcels []string, lowerBound string) ([]violations.Record, error)
}

// Options are the per-run modes accepted by the trigger surface.
type Options struct {
	// TestRun sends a fixed test notification and bypasses
	// fetch/diff/persist entirely.
	TestRun bool
	// FullSync ignores the store watermark and re-requests the wide
	// historical window.
	FullSync bool
	// SkipEmail runs the pipeline but omits the email channel; used for
	// silent backfills.
	SkipEmail bool
}

// RunResult is the trigger surface's success response.
type RunResult struct {
	Message                         string `json:"message"`
	NewRecordsCount                 int    `json:"newRecordsCount"`
	NewCasefilesCount               int    `json:"newCasefilesCount"`
	NewRecordsForExistingCasesCount int    `json:"newRecordsForExistingCasesCount"`
	EmailSent                       bool   `json:"emailSent"`
	SavedSuccessfully               bool   `json:"savedSuccessfully"`
}

// Runner sequences one check run and owns error isolation between stages.
type Runner struct {
	Store      datastore.Interface
	Upstream   UpstreamClient
	Dispatcher *notify.Dispatcher
}

// Run executes one check. An upstream fetch failure is fatal and leaves the
// checkpoint untouched; persistence and notification failures are isolated
// so the stages after them still run.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunResult, error) {
	cp, err := r.Store.GetCheckpoint()
	if err != nil {
		return nil, err
	}
	if !cp.ChecksEnabled {
		logger.Info("violation checks are disabled, skipping run")
		return nil, ErrCheckDisabled
	}

	channelCfg := &notify.ChannelConfig{
		EmailEnabled: cp.EmailEnabled,
		EmailTo:      cp.EmailTo,
		SMSEnabled:   cp.SMSEnabled,
		SMSTo:        cp.SMSTo,
		PushEnabled:  cp.PushEnabled,
		SkipEmail:    opts.SkipEmail,
	}

	if opts.TestRun {
		return r.testRun(ctx, channelCfg), nil
	}

	runID := uuid.NewString()
	acquired, err := r.Store.AcquireLease(runID, leaseTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Warn("another check run holds the lease, skipping")
		return &RunResult{Message: "another check is already running"}, nil
	}
	defer func() {
		if err := r.Store.ReleaseLease(runID); err != nil {
			logger.Error("failed to release run lease", "run_id", runID, "error", err)
		}
	}()

	locations, err := r.Store.WatchedLocations()
	if err != nil {
		return nil, err
	}
	parcels := parcelIDs(locations)

	var watermark *time.Time
	if !opts.FullSync {
		watermark, err = r.Store.LatestInvestigationDate()
		if err != nil {
			return nil, err
		}
	}

	lowerBound := r.Upstream.LowerBound(watermark, opts.FullSync)
	upstream, err := r.Upstream.FetchViolations(ctx, parcels, lowerBound)
	if err != nil {
		// Fatal: no partial ingestion, checkpoint untouched.
		return nil, err
	}

	existingIDs, err := r.Store.ExistingIDs()
	if err != nil {
		return nil, err
	}
	existingCasefiles, err := r.Store.ExistingCasefiles()
	if err != nil {
		return nil, err
	}

	diff := violations.FilterNew(upstream, existingIDs, existingCasefiles, watermark)
	logger.Info("diffed upstream records",
		"fetched", len(upstream),
		"new", len(diff.NewRecords),
		"new_casefiles", len(diff.NewCasefiles),
		"updates", len(diff.NewForExistingCases),
		"full_sync", opts.FullSync)

	savedSuccessfully := true
	if diff.HasNew() {
		inserted, err := r.Store.InsertViolations(diff.NewRecords)
		if err != nil {
			// Non-fatal: the in-memory diff is still valid for notification,
			// and whatever was saved before the failure stays saved.
			savedSuccessfully = false
			logger.Error("persisting new records failed", "inserted", inserted, "error", err)
		} else {
			logger.Info("persisted new records", "inserted", inserted)
		}
	}

	allKnown, err := r.Store.AllViolations()
	if err != nil {
		logger.Error("loading known records for summary failed", "error", err)
		allKnown = nil
	}

	summary := notify.Summarize(diff, allKnown)
	outcome := r.Dispatcher.Dispatch(ctx, &summary, channelCfg)

	if err := r.Store.UpdateCheckpoint(time.Now(), len(diff.NewRecords)); err != nil {
		// Logged only: the next run recomputes from store state, and dedup
		// is id-based, so a missed checkpoint just widens the next fetch.
		logger.Error("updating checkpoint failed", "error", err)
	}

	return &RunResult{
		Message:                         runMessage(&diff),
		NewRecordsCount:                 len(diff.NewRecords),
		NewCasefilesCount:               len(diff.NewCasefiles),
		NewRecordsForExistingCasesCount: len(diff.NewForExistingCases),
		EmailSent:                       outcome.EmailSent,
		SavedSuccessfully:               savedSuccessfully,
	}, nil
}

// testRun sends a fixed notification through the enabled channels without
// touching upstream or the store.
func (r *Runner) testRun(ctx context.Context, cfg *notify.ChannelConfig) *RunResult {
	summary := notify.Summarize(violations.DiffResult{
		NewRecords:   []violations.Record{testRecord()},
		NewCasefiles: []violations.Record{testRecord()},
	}, nil)

	outcome := r.Dispatcher.Dispatch(ctx, &summary, cfg)
	logger.Info("test run dispatched", "email_sent", outcome.EmailSent, "sms_sent", outcome.SMSSent)

	return &RunResult{
		Message:   "test notifications dispatched",
		EmailSent: outcome.EmailSent,
	}
}

func testRecord() violations.Record {
	return violations.Record{
		ID:                0,
		CasefileNumber:    "TEST-0000",
		Address:           "123 Test St",
		Status:            "IN VIOLATION",
		InvestigationDate: time.Now(),
		Description:       "Test notification, no action needed",
	}
}

func parcelIDs(locations []datastore.WatchedLocation) []string {
	seen := make(map[string]struct{}, len(locations))
	parcels := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc.ParcelID == "" {
			continue
		}
		if _, dup := seen[loc.ParcelID]; dup {
			continue
		}
		seen[loc.ParcelID] = struct{}{}
		parcels = append(parcels, loc.ParcelID)
	}
	return parcels
}

func runMessage(diff *violations.DiffResult) string {
	if !diff.HasNew() {
		return "no new violations found"
	}
	return fmt.Sprintf("found %d new records (%d new cases, %d updates to existing cases)",
		len(diff.NewRecords), len(diff.NewCasefiles), len(diff.NewForExistingCases))
}
