package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
)

func newJSONRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(fmt.Errorf("creating request: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
