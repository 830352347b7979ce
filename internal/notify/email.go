package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/k3a/html2text"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/httpclient"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// maxListedRecords caps the per-email record listing; the remainder is
// summarized as a trailer line.
const maxListedRecords = 10

const emailBodyTemplate = `<html>
<body>
<h2>{{.Heading}}</h2>
{{if .NoNews}}<p>No new violations were found for your watched properties.</p>
<h3>Current open cases</h3>
<ul>
{{range .StatusLines}}<li>{{.}}</li>
{{end}}</ul>
{{else}}{{if .NewCases}}<h3>New cases</h3>
<ul>
{{range .NewCases}}<li><a href="{{.Link}}">{{.Casefile}}</a> &mdash; {{.Address}} &mdash; {{.Status}} ({{.Date}})<br>{{.Description}}</li>
{{end}}</ul>
{{end}}{{if .Updates}}<h3>Updates to existing cases</h3>
<ul>
{{range .Updates}}<li><a href="{{.Link}}">{{.Casefile}}</a> &mdash; {{.Address}} &mdash; {{.Status}} ({{.Date}})<br>{{.Description}}</li>
{{end}}</ul>
{{end}}{{if .MoreCount}}<p>...and {{.MoreCount}} more.</p>
{{end}}{{end}}<p><a href="{{.DashboardURL}}">Open the dashboard</a></p>
</body>
</html>`

// emailPayload is the transactional email API request body.
type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

type emailRow struct {
	Casefile    string
	Address     string
	Status      string
	Date        string
	Description string
	Link        string
}

type emailData struct {
	Heading      string
	NoNews       bool
	StatusLines  []string
	NewCases     []emailRow
	Updates      []emailRow
	MoreCount    int
	DashboardURL string
}

// EmailService sends HTML report emails through a transactional email API.
type EmailService struct {
	settings  conf.EmailSettings
	dashboard string
	http      *httpclient.Client
	tmpl      *template.Template
}

// NewEmailService creates the email channel sender.
func NewEmailService(settings conf.EmailSettings, dashboard conf.DashboardSettings) (*EmailService, error) {
	tmpl, err := template.New("email").Parse(emailBodyTemplate)
	if err != nil {
		return nil, errors.New(fmt.Errorf("parsing email template: %w", err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &EmailService{
		settings:  settings,
		dashboard: strings.TrimRight(dashboard.BaseURL, "/"),
		http:      httpclient.New(nil),
		tmpl:      tmpl,
	}, nil
}

// Subject returns the subject line for the summary's variant.
func (s *EmailService) Subject(summary *Summary) string {
	total, newCases, updates := summary.Counts()
	switch summary.Variant {
	case VariantNoNews:
		return "Violation check: no new violations"
	case VariantNewOnly:
		return fmt.Sprintf("Violation check: %s found", plural(newCases, "new case", "new cases"))
	case VariantUpdatesOnly:
		return fmt.Sprintf("Violation check: %s to existing cases", plural(updates, "update", "updates"))
	default:
		return fmt.Sprintf("Violation check: %d new records (%s, %s)",
			total, plural(newCases, "new case", "new cases"), plural(updates, "update", "updates"))
	}
}

// Send composes and delivers the report email for the summary.
func (s *EmailService) Send(ctx context.Context, summary *Summary, to string) error {
	if to == "" {
		return errors.Newf("email destination is not configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	html, err := s.renderBody(summary)
	if err != nil {
		return err
	}

	payload := emailPayload{
		From:    s.settings.From,
		To:      to,
		Subject: s.Subject(summary),
		HTML:    html,
		Text:    html2text.HTML2Text(html),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.New(fmt.Errorf("marshaling email payload: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}

	req, err := newJSONRequest(ctx, s.settings.Endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.settings.APIKey)

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		return errors.New(fmt.Errorf("sending email: %w", err)).
			Component("notify").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("email API returned status %d", resp.StatusCode).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("status_code", resp.StatusCode).
			Build()
	}

	logger.Info("email sent", "to", to, "subject", payload.Subject)
	return nil
}

func (s *EmailService) renderBody(summary *Summary) (string, error) {
	data := emailData{
		DashboardURL: s.dashboard,
	}

	total, newCases, updates := summary.Counts()
	switch summary.Variant {
	case VariantNoNews:
		data.Heading = "No new violations"
		data.NoNews = true
		data.StatusLines = statusLines(summary.OpenCaseCounts)
	case VariantNewOnly:
		data.Heading = fmt.Sprintf("%s opened", plural(newCases, "new violation case", "new violation cases"))
	case VariantUpdatesOnly:
		data.Heading = fmt.Sprintf("%s to existing violation cases", plural(updates, "update", "updates"))
	default:
		data.Heading = fmt.Sprintf("%d new violation records", total)
	}

	// List at most maxListedRecords across both sections, new cases first.
	budget := maxListedRecords
	for _, r := range summary.Diff.NewCasefiles {
		if budget == 0 {
			break
		}
		data.NewCases = append(data.NewCases, s.row(&r))
		budget--
	}
	for _, r := range summary.Diff.NewForExistingCases {
		if budget == 0 {
			break
		}
		data.Updates = append(data.Updates, s.row(&r))
		budget--
	}
	if total > maxListedRecords {
		data.MoreCount = total - maxListedRecords
	}

	var sb strings.Builder
	if err := s.tmpl.Execute(&sb, data); err != nil {
		return "", errors.New(fmt.Errorf("rendering email body: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}
	return sb.String(), nil
}

// row formats one record for the email listing, linking back to the
// dashboard filtered by casefile number.
func (s *EmailService) row(r *violations.Record) emailRow {
	casefile := r.CasefileNumber
	if casefile == "" {
		casefile = "(no casefile)"
	}
	return emailRow{
		Casefile:    casefile,
		Address:     r.Address,
		Status:      string(violations.ParseStatus(r.Status)),
		Date:        r.InvestigationDate.Format("2006-01-02"),
		Description: r.Description,
		Link:        s.dashboard + "/?casefile=" + url.QueryEscape(r.CasefileNumber),
	}
}

func statusLines(counts map[violations.Status]int) []string {
	var lines []string
	for _, status := range []violations.Status{
		violations.StatusInViolation,
		violations.StatusInCourt,
		violations.StatusReadyToClose,
		violations.StatusClosed,
		violations.StatusUnknown,
	} {
		if n := counts[status]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", status, n))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No cases on file yet")
	}
	return lines
}
