package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/httpclient"
)

// SMSService sends short plain-text summaries through an SMS gateway with
// a Twilio-style form-encoded, basic-auth API.
type SMSService struct {
	settings conf.SMSSettings
	http     *httpclient.Client
}

// NewSMSService creates the SMS channel sender.
func NewSMSService(settings conf.SMSSettings) *SMSService {
	return &SMSService{
		settings: settings,
		http:     httpclient.New(nil),
	}
}

// Body returns the message text for the summary.
func (s *SMSService) Body(summary *Summary) string {
	total, newCases, updates := summary.Counts()
	return fmt.Sprintf("Violation check: %s found (%s, %s to existing cases)",
		plural(total, "new record", "new records"),
		plural(newCases, "new case", "new cases"),
		plural(updates, "update", "updates"))
}

// Send delivers the summary text to the destination number.
func (s *SMSService) Send(ctx context.Context, summary *Summary, to string) error {
	if to == "" {
		return errors.Newf("sms destination is not configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.settings.From)
	form.Set("Body", s.Body(summary))

	endpoint := fmt.Sprintf("%s/%s/Messages.json",
		strings.TrimRight(s.settings.Endpoint, "/"), s.settings.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(fmt.Errorf("creating sms request: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.settings.AccountSID, s.settings.AuthToken)

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		return errors.New(fmt.Errorf("sending sms: %w", err)).
			Component("notify").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("sms gateway returned status %d", resp.StatusCode).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("status_code", resp.StatusCode).
			Build()
	}

	logger.Info("sms sent", "to", to)
	return nil
}
