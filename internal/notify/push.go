package notify

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/datastore"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/httpclient"
)

const (
	// Provider tokens are valid for an hour; refreshing at 50 minutes
	// leaves a margin so an in-flight delivery never carries an expired
	// token, while re-signing stays rare enough to avoid gateway
	// rate-limiting.
	defaultTokenTTL = 50 * time.Minute

	tokenCacheKey = "apns-provider-token"

	defaultMaxConcurrent = 100
)

// DeviceSource lists the devices eligible for push delivery.
type DeviceSource interface {
	PushDevices() ([]datastore.Device, error)
}

// PushService delivers APNs notifications to all eligible devices using a
// cached short-lived provider token.
type PushService struct {
	settings   conf.PushSettings
	devices    DeviceSource
	http       *httpclient.Client
	signingKey *ecdsa.PrivateKey

	tokenTTL time.Duration
	tokens   *gocache.Cache
	signMu   sync.Mutex

	// now is injectable so tests control the token's issued-at claim.
	now func() time.Time
}

// NewPushService creates the push channel sender, loading the ES256 signing
// key from the configured PEM file.
func NewPushService(settings conf.PushSettings, devices DeviceSource) (*PushService, error) {
	pemBytes, err := os.ReadFile(settings.PrivateKeyPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading push signing key: %w", err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, errors.New(fmt.Errorf("parsing push signing key: %w", err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NewPushServiceWithKey(settings, devices, key), nil
}

// NewPushServiceWithKey creates the push channel sender with an already
// parsed signing key.
func NewPushServiceWithKey(settings conf.PushSettings, devices DeviceSource, key *ecdsa.PrivateKey) *PushService {
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = defaultMaxConcurrent
	}
	return &PushService{
		settings:   settings,
		devices:    devices,
		http:       httpclient.New(nil),
		signingKey: key,
		tokenTTL:   defaultTokenTTL,
		tokens:     gocache.New(defaultTokenTTL, 2*defaultTokenTTL),
		now:        time.Now,
	}
}

// SetTokenTTL overrides the provider token cache lifetime. Intended for
// tests exercising the refresh path.
func (s *PushService) SetTokenTTL(ttl time.Duration) {
	s.tokenTTL = ttl
	s.tokens = gocache.New(ttl, 2*ttl)
}

// providerToken returns the cached signed provider token, re-signing only
// when the cached one is near expiry.
func (s *PushService) providerToken() (string, error) {
	if cached, found := s.tokens.Get(tokenCacheKey); found {
		return cached.(string), nil
	}

	s.signMu.Lock()
	defer s.signMu.Unlock()
	// Another goroutine may have signed while we waited for the lock.
	if cached, found := s.tokens.Get(tokenCacheKey); found {
		return cached.(string), nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.settings.TeamID,
		"iat": s.now().Unix(),
	})
	token.Header["kid"] = s.settings.KeyID

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.New(fmt.Errorf("signing provider token: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}

	s.tokens.Set(tokenCacheKey, signed, s.tokenTTL)
	return signed, nil
}

// alert returns the payload title and body for the summary's variant.
func (s *PushService) alert(summary *Summary) (title, body string) {
	total, newCases, updates := summary.Counts()
	first := summary.FirstAddress()
	switch summary.Variant {
	case VariantNewOnly:
		return "New violation case", fmt.Sprintf("%s opened, first at %s",
			plural(newCases, "new case", "new cases"), first)
	case VariantUpdatesOnly:
		return "Violation case updated", fmt.Sprintf("%s to existing cases, first at %s",
			plural(updates, "update", "updates"), first)
	default:
		return "New violation activity", fmt.Sprintf("%d new records (%s, %s), first at %s",
			total, plural(newCases, "new case", "new cases"), plural(updates, "update", "updates"), first)
	}
}

// Send delivers the summary to every eligible device concurrently, bounded
// by the configured in-flight limit. One device's failure never blocks the
// others; failures are logged per device.
func (s *PushService) Send(ctx context.Context, summary *Summary) error {
	devices, err := s.devices.PushDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		logger.Info("no push-eligible devices registered")
		return nil
	}

	token, err := s.providerToken()
	if err != nil {
		return err
	}

	title, body := s.alert(summary)
	total, _, _ := summary.Counts()
	payload := map[string]any{
		"aps": map[string]any{
			"alert":           map[string]string{"title": title, "body": body},
			"badge":           total,
			"sound":           "default",
			"mutable-content": 1,
		},
	}
	if len(summary.Diff.NewRecords) > 0 {
		payload["casefileNumber"] = summary.Diff.NewRecords[0].CasefileNumber
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return errors.New(fmt.Errorf("marshaling push payload: %w", err)).
			Component("notify").
			Category(errors.CategoryNotification).
			Build()
	}

	sem := semaphore.NewWeighted(int64(s.settings.MaxConcurrent))
	var wg sync.WaitGroup
	for _, device := range devices {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Warn("push dispatch canceled", "remaining_devices", len(devices))
			break
		}
		wg.Add(1)
		go func(dev datastore.Device) {
			defer wg.Done()
			defer sem.Release(1)
			if err := s.sendToDevice(ctx, dev, token, rawPayload); err != nil {
				logger.Error("push delivery failed", "device_id", dev.ID, "error", err)
			}
		}(device)
	}
	wg.Wait()

	logger.Info("push dispatched", "devices", len(devices), "title", title)
	return nil
}

func (s *PushService) sendToDevice(ctx context.Context, device datastore.Device, token string, payload []byte) error {
	url := fmt.Sprintf("%s/3/device/%s", strings.TrimRight(s.settings.Gateway, "/"), device.Token)

	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apns-topic", s.settings.BundleID)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		return errors.New(fmt.Errorf("delivering push: %w", err)).
			Component("notify").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("push gateway returned status %d", resp.StatusCode).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}
