package notifier

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned for a webhook whose provider has no
// registered factory.
var ErrUnknownProvider = errors.New("notifier: unknown provider")

// Factory builds a notifier that posts to webhookURL.
type Factory func(webhookURL string) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a chat provider available to FromWebhooks. Adapters call
// it from init; a second registration of the same provider panics.
func Register(provider string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[provider]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", provider))
	}
	factories[provider] = f
}

// FromWebhooks builds one notifier per provider with a webhook URL set,
// ordered by provider name. Providers with an empty URL are skipped. The
// notifiers that could be built are returned along with the joined errors
// of the ones that could not.
func FromWebhooks(webhooks map[string]string) ([]Notifier, error) {
	var (
		out  []Notifier
		errs []error
	)
	for _, provider := range slices.Sorted(maps.Keys(webhooks)) {
		raw := strings.TrimSpace(webhooks[provider])
		if raw == "" {
			continue
		}
		mu.RLock()
		f, ok := factories[provider]
		mu.RUnlock()
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownProvider, provider))
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, fmt.Errorf("notifier %q: webhook URL must be an absolute http(s) URL: %w", provider, ErrNotConfigured))
			continue
		}
		n, err := f(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("notifier %q: %w", provider, err))
			continue
		}
		out = append(out, n)
	}
	return out, errors.Join(errs...)
}
