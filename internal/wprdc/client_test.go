package wprdc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
)

const testEndpoint = "https://data.wprdc.org/api/3/action/datastore_search_sql"

func testSettings() conf.UpstreamSettings {
	return conf.UpstreamSettings{
		Endpoint:      testEndpoint,
		ResourceID:    "test-resource",
		PageSize:      1000,
		DefaultEpoch:  "2024-01-01",
		FullSyncEpoch: "2020-01-01",
	}
}

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

const successPayload = `{
	"success": true,
	"result": {
		"records": [
			{
				"_id": 4711,
				"casefile_number": "CF-2025-0042",
				"address": "123 MAIN ST",
				"parcel_id": "0001-A-00100",
				"status": "IN VIOLATION",
				"investigation_date": "2025-03-04T00:00:00",
				"violation_description": "Overgrown vegetation",
				"violation_code_section": "PM-302.4",
				"violation_spec_instructions": "Cut grass below 10 inches",
				"investigation_outcome": "Violation found",
				"investigation_findings": "Grass exceeds limit"
			},
			{
				"_id": 4710,
				"casefile_number": "CF-2025-0041",
				"address": "125 MAIN ST",
				"parcel_id": "0001-A-00101",
				"status": "CLOSED",
				"investigation_date": "2025-03-01",
				"violation_description": "Debris in yard",
				"violation_code_section": "PM-308.1",
				"violation_spec_instructions": "",
				"investigation_outcome": "Abated",
				"investigation_findings": ""
			}
		]
	}
}`

func TestFetchViolations_Success(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(200, successPayload))

	client := NewClient(testSettings())
	records, err := client.FetchViolations(context.Background(), []string{"0001-A-00100", "0001-A-00101"}, "2025-02-28")

	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(4711), records[0].ID)
	assert.Equal(t, "CF-2025-0042", records[0].CasefileNumber)
	assert.Equal(t, "123 MAIN ST", records[0].Address)
	assert.Equal(t, "IN VIOLATION", records[0].Status)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), records[0].InvestigationDate)

	// Date without a time component parses too.
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), records[1].InvestigationDate)
}

func TestFetchViolations_QueryShape(t *testing.T) {
	setupHTTPMock(t)

	var capturedSQL string
	httpmock.RegisterResponder("GET", testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			capturedSQL = req.URL.Query().Get("sql")
			return httpmock.NewStringResponse(200, `{"success":true,"result":{"records":[]}}`), nil
		})

	client := NewClient(testSettings())
	_, err := client.FetchViolations(context.Background(), []string{"0001-A-00100", "0002-B-00200"}, "2025-01-15")

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, `FROM "test-resource"`)
	assert.Contains(t, capturedSQL, `parcel_id IN ('0001-A-00100', '0002-B-00200')`)
	assert.Contains(t, capturedSQL, `investigation_date >= '2025-01-15'`)
	assert.Contains(t, capturedSQL, "ORDER BY investigation_date DESC")
	assert.Contains(t, capturedSQL, "LIMIT 1000")
}

func TestFetchViolations_EmptyParcelsSkipsNetwork(t *testing.T) {
	setupHTTPMock(t)
	// No responder registered; a network call would fail the test.

	client := NewClient(testSettings())
	records, err := client.FetchViolations(context.Background(), nil, "2025-01-01")

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestFetchViolations_UpstreamStatusError(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(503, "upstream down"))

	client := NewClient(testSettings())
	records, err := client.FetchViolations(context.Background(), []string{"0001-A-00100"}, "2025-01-01")

	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, ErrUpstreamStatus))
}

func TestFetchViolations_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not_json", "<html>error</html>"},
		{"success_false", `{"success": false, "error": {"message": "bad sql"}}`},
		{"missing_result", `{"success": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			httpmock.RegisterResponder("GET", testEndpoint,
				httpmock.NewStringResponder(200, tt.body))

			client := NewClient(testSettings())
			_, err := client.FetchViolations(context.Background(), []string{"0001-A-00100"}, "2025-01-01")

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResponse))
		})
	}
}

func TestLowerBound(t *testing.T) {
	client := NewClient(testSettings())
	latest := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		latest   *time.Time
		fullSync bool
		want     string
	}{
		{"normal_run_day_after_watermark", &latest, false, "2025-03-05"},
		{"empty_store_default_epoch", nil, false, "2024-01-01"},
		{"full_sync_ignores_watermark", &latest, true, "2020-01-01"},
		{"full_sync_empty_store", nil, true, "2020-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.LowerBound(tt.latest, tt.fullSync))
		})
	}
}

func TestBuildSQL_EscapesQuotes(t *testing.T) {
	client := NewClient(testSettings())
	sql := client.buildSQL([]string{"O'HARA-001"}, "2025-01-01")

	assert.Contains(t, sql, "'O''HARA-001'")
	// The query must round-trip URL encoding intact.
	escaped := url.QueryEscape(sql)
	unescaped, err := url.QueryUnescape(escaped)
	require.NoError(t, err)
	assert.True(t, strings.Contains(unescaped, "O''HARA-001"))
}
