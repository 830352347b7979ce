// Package wprdc provides the client for the WPRDC (Western Pennsylvania
// Regional Data Center) open-data API serving Pittsburgh code violation
// records through CKAN's datastore_search_sql endpoint.
package wprdc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/httpclient"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// Package-level logger specific to the wprdc service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "wprdc.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "wprdc", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize wprdc file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "wprdc")
		closeLogger = func() error { return nil }
	}
}

// Sentinel errors matching the run-fatal failure modes of an upstream fetch.
var (
	// ErrUpstreamStatus indicates the upstream returned a non-2xx response.
	ErrUpstreamStatus = errors.Newf("upstream returned non-success status").Component("wprdc").Category(errors.CategoryHTTP).Build()
	// ErrInvalidResponse indicates the upstream payload was malformed.
	ErrInvalidResponse = errors.Newf("upstream response payload is malformed").Component("wprdc").Category(errors.CategoryValidation).Build()
)

// Client fetches code violation records from the WPRDC API.
type Client struct {
	settings conf.UpstreamSettings
	http     *httpclient.Client
}

// NewClient creates a new WPRDC client using the shared HTTP client wrapper.
func NewClient(settings conf.UpstreamSettings) *Client {
	return &Client{
		settings: settings,
		http:     httpclient.New(nil),
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// LowerBound computes the investigation-date fetch boundary. Normal runs
// use the day after the latest stored date so the boundary day is not
// re-fetched; an empty store falls back to the configured default epoch.
// Full-sync runs ignore the watermark and use the earlier full-sync epoch.
func (c *Client) LowerBound(latest *time.Time, fullSync bool) string {
	if fullSync {
		return c.settings.FullSyncEpoch
	}
	if latest == nil {
		return c.settings.DefaultEpoch
	}
	return latest.AddDate(0, 0, 1).Format("2006-01-02")
}

// FetchViolations fetches all records for the given parcels with an
// investigation date at or after the lower bound, newest first, capped at
// the configured page size. An empty parcel set short-circuits to an empty
// result without a network call.
func (c *Client) FetchViolations(ctx context.Context, parcels []string, lowerBound string) ([]violations.Record, error) {
	if len(parcels) == 0 {
		logger.Info("no watched locations configured, skipping upstream fetch")
		return nil, nil
	}

	query := c.buildSQL(parcels, lowerBound)
	requestURL := c.settings.Endpoint + "?sql=" + url.QueryEscape(query)

	logger.Debug("fetching violations", "parcels", len(parcels), "lower_bound", lowerBound)

	resp, err := c.http.Get(ctx, requestURL)
	if err != nil {
		return nil, errors.New(fmt.Errorf("fetching violations: %w", err)).
			Component("wprdc").
			Category(errors.CategoryNetwork).
			Context("lower_bound", lowerBound).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)).
			Component("wprdc").
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading upstream response: %w", err)).
			Component("wprdc").
			Category(errors.CategoryNetwork).
			Build()
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.New(fmt.Errorf("%w: %v", ErrInvalidResponse, err)).
			Component("wprdc").
			Category(errors.CategoryValidation).
			Build()
	}
	if !parsed.Success || parsed.Result == nil {
		return nil, errors.New(fmt.Errorf("%w: missing success or result.records", ErrInvalidResponse)).
			Component("wprdc").
			Category(errors.CategoryValidation).
			Build()
	}

	records := make([]violations.Record, 0, len(parsed.Result.Records))
	for i := range parsed.Result.Records {
		records = append(records, parsed.Result.Records[i].toRecord())
	}

	logger.Info("fetched violations", "count", len(records), "lower_bound", lowerBound)
	return records, nil
}

// buildSQL constructs the CKAN SQL query restricted to the watched parcels
// and the date lower bound, newest first.
func (c *Client) buildSQL(parcels []string, lowerBound string) string {
	quoted := make([]string, 0, len(parcels))
	for _, p := range parcels {
		// Single quotes in parcel ids are doubled per SQL string rules.
		quoted = append(quoted, "'"+strings.ReplaceAll(p, "'", "''")+"'")
	}
	return fmt.Sprintf(
		`SELECT * FROM "%s" WHERE parcel_id IN (%s) AND investigation_date >= '%s' ORDER BY investigation_date DESC LIMIT %d`,
		c.settings.ResourceID, strings.Join(quoted, ", "), lowerBound, c.settings.PageSize)
}
