package checker

import (
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/datastore"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/notify"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/wprdc"
)

// NewRunner wires a Runner from settings: it opens the datastore, builds the
// upstream client and constructs the notification channels that have
// credentials configured. The returned cleanup closes everything and must be
// called once the runner is no longer needed.
func NewRunner(settings *conf.Settings) (*Runner, func() error, error) {
	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, nil, err
	}

	upstream := wprdc.NewClient(settings.Upstream)

	dispatcher := &notify.Dispatcher{}

	if settings.Notification.Email.APIKey != "" {
		email, err := notify.NewEmailService(settings.Notification.Email, settings.Dashboard)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		dispatcher.Email = email
	} else {
		logger.Warn("email API key not configured, email channel disabled")
	}

	if settings.Notification.SMS.AccountSID != "" {
		dispatcher.SMS = notify.NewSMSService(settings.Notification.SMS)
	} else {
		logger.Warn("SMS account not configured, SMS channel disabled")
	}

	if settings.Notification.Push.PrivateKeyPath != "" {
		push, err := notify.NewPushService(settings.Notification.Push, store)
		if err != nil {
			_ = store.Close()
			return nil, nil, errors.New(err).
				Component("checker").
				Category(errors.CategoryConfiguration).
				Context("private_key_path", settings.Notification.Push.PrivateKeyPath).
				Build()
		}
		dispatcher.Push = push
	} else {
		logger.Warn("push signing key not configured, push channel disabled")
	}

	runner := &Runner{
		Store:      store,
		Upstream:   upstream,
		Dispatcher: dispatcher,
	}

	cleanup := func() error {
		upstream.Close()
		return store.Close()
	}
	return runner, cleanup, nil
}
