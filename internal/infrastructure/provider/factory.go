package provider

import (
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// Keys lists every known provider in the order their results are merged.
var Keys = []string{"wggesucht", "immowelt", "immoscout", "kleinanzeigen", "craigslist"}

// Factory builds per-user provider sets from configuration. A provider key
// missing from the user's config yields no provider at all; an empty source
// URL yields a disabled one.
type Factory struct {
	browser  ports.BrowserService
	client   *resty.Client
	feeds    *gofeed.Parser
	logger   *slog.Logger
	recorder ports.ErrorRecorder

	builders map[string]func(source, token string) ports.Provider
}

// NewFactory wires the shared collaborators every provider variant draws from.
func NewFactory(browser ports.BrowserService, client *resty.Client, feeds *gofeed.Parser, logger *slog.Logger, recorder ports.ErrorRecorder) *Factory {
	f := &Factory{
		browser:  browser,
		client:   client,
		feeds:    feeds,
		logger:   logger,
		recorder: recorder,
	}
	f.builders = map[string]func(source, token string) ports.Provider{
		"wggesucht": func(source, token string) ports.Provider {
			return NewWGGesucht(source, token, f.browser, f.logger, f.recorder)
		},
		"immowelt": func(source, token string) ports.Provider {
			return NewImmowelt(source, token, f.browser, f.logger, f.recorder)
		},
		"immoscout": func(source, token string) ports.Provider {
			return NewImmoscout(source, token, f.browser, f.logger, f.recorder)
		},
		"kleinanzeigen": func(source, token string) ports.Provider {
			return NewKleinanzeigen(source, token, f.client, f.logger, f.recorder)
		},
		"craigslist": func(source, token string) ports.Provider {
			return NewCraigslist(source, token, f.feeds, f.logger, f.recorder)
		},
	}
	return f
}

// ForUser instantiates the providers the user subscribed to, in stable key
// order. Unknown provider keys in the config are skipped with a warning.
func (f *Factory) ForUser(user domain.User) []ports.Provider {
	providers := make([]ports.Provider, 0, len(user.Providers))
	for _, key := range Keys {
		source, ok := user.Providers[key]
		if !ok {
			continue
		}
		providers = append(providers, f.builders[key](source, user.ID))
	}

	for key := range user.Providers {
		if _, known := f.builders[key]; !known && f.logger != nil {
			f.logger.Warn("unknown provider key in config", "user", user.ID, "provider", key)
		}
	}
	return providers
}

// NeedsBrowser reports whether any configured user subscribes to a provider
// that renders pages, so the app can skip launching a browser entirely.
func NeedsBrowser(users []domain.User) bool {
	for _, user := range users {
		for _, key := range []string{"wggesucht", "immowelt", "immoscout"} {
			if source, ok := user.Providers[key]; ok && source != "" {
				return true
			}
		}
	}
	return false
}
