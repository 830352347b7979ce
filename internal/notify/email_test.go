package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

const emailEndpoint = "https://api.email.test/emails"

func newTestEmailService(t *testing.T) *EmailService {
	t.Helper()
	svc, err := NewEmailService(
		conf.EmailSettings{Endpoint: emailEndpoint, APIKey: "test-key", From: "alerts@example.com"},
		conf.DashboardSettings{BaseURL: "https://dash.example.com/"},
	)
	require.NoError(t, err)
	return svc
}

func captureEmail(t *testing.T) *emailPayload {
	t.Helper()
	captured := &emailPayload{}
	httpmock.RegisterResponder("POST", emailEndpoint,
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(captured))
			return httpmock.NewStringResponse(200, `{"id":"msg_1"}`), nil
		})
	return captured
}

func TestEmailSubjects(t *testing.T) {
	svc := newTestEmailService(t)
	newCase := record(1, "C1", "123 Main St")
	update := record(2, "C2", "125 Main St")

	tests := []struct {
		name    string
		summary Summary
		want    string
	}{
		{"no_news", Summarize(violations.DiffResult{}, nil), "Violation check: no new violations"},
		{"new_only", Summarize(diffWith([]violations.Record{newCase}, nil), nil), "Violation check: 1 new case found"},
		{"updates_only", Summarize(diffWith(nil, []violations.Record{update}), nil), "Violation check: 1 update to existing cases"},
		{"mixed", Summarize(diffWith([]violations.Record{newCase}, []violations.Record{update}), nil), "Violation check: 2 new records (1 new case, 1 update)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Subject(&tt.summary))
		})
	}
}

func TestEmailSend_BodyListsRecordsWithDashboardLinks(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	captured := captureEmail(t)

	svc := newTestEmailService(t)
	summary := Summarize(diffWith(
		[]violations.Record{record(1, "CF-2025-0042", "123 Main St")},
		[]violations.Record{record(2, "CF-2025-0007", "125 Main St")},
	), nil)

	require.NoError(t, svc.Send(context.Background(), &summary, "owner@example.com"))

	assert.Equal(t, "alerts@example.com", captured.From)
	assert.Equal(t, "owner@example.com", captured.To)
	assert.Contains(t, captured.HTML, "https://dash.example.com/?casefile=CF-2025-0042")
	assert.Contains(t, captured.HTML, "https://dash.example.com/?casefile=CF-2025-0007")
	assert.Contains(t, captured.HTML, "123 Main St")
	assert.Contains(t, captured.HTML, "New cases")
	assert.Contains(t, captured.HTML, "Updates to existing cases")
	assert.NotEmpty(t, captured.Text, "plain-text alternative should be derived from the HTML")
	assert.NotContains(t, captured.Text, "<h2>")
}

func TestEmailSend_TruncatesAfterTenRecords(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	captured := captureEmail(t)

	var newCases []violations.Record
	for i := range 14 {
		newCases = append(newCases, record(int64(i+1), fmt.Sprintf("C%d", i+1), fmt.Sprintf("%d Main St", i+1)))
	}
	svc := newTestEmailService(t)
	summary := Summarize(diffWith(newCases, nil), nil)

	require.NoError(t, svc.Send(context.Background(), &summary, "owner@example.com"))

	assert.Contains(t, captured.HTML, "casefile=C10")
	assert.NotContains(t, captured.HTML, "casefile=C11")
	assert.Contains(t, captured.HTML, "...and 4 more.")
}

func TestEmailSend_NoNewsVariant(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	captured := captureEmail(t)

	known := []violations.Record{
		record(1, "C1", "123 Main St"),
		record(2, "C2", "125 Main St"),
	}
	svc := newTestEmailService(t)
	summary := Summarize(violations.DiffResult{}, known)

	require.NoError(t, svc.Send(context.Background(), &summary, "owner@example.com"))

	assert.Contains(t, captured.HTML, "No new violations")
	assert.Contains(t, captured.HTML, "Current open cases")
	assert.Contains(t, captured.HTML, "IN VIOLATION: 2")
}

func TestEmailSend_APIFailure(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("POST", emailEndpoint,
		httpmock.NewStringResponder(422, `{"error":"invalid recipient"}`))

	svc := newTestEmailService(t)
	summary := Summarize(violations.DiffResult{}, nil)

	err := svc.Send(context.Background(), &summary, "owner@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestEmailSend_MissingDestination(t *testing.T) {
	svc := newTestEmailService(t)
	summary := Summarize(violations.DiffResult{}, nil)

	err := svc.Send(context.Background(), &summary, "")
	require.Error(t, err)
}
