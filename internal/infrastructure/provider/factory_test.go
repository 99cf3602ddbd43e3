package provider

import (
	"net/url"
	"testing"

	"github.com/go-resty/resty/v2"

	"flatwatch/internal/domain"
)

func splitURLQuery(t *testing.T, rawURL string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url %q: %v", rawURL, err)
	}
	return parsed.RawQuery
}

func TestFactoryForUser(t *testing.T) {
	t.Parallel()

	factory := NewFactory(&fakeBrowser{}, resty.New(), nil, nil, nil)

	user := domain.User{
		ID: "u1",
		Providers: map[string]string{
			"craigslist": "https://berlin.craigslist.org/search/apa",
			"wggesucht":  "https://www.wg-gesucht.de/wohnungen-in-Berlin.8.2.1.0.html",
			"flatmate":   "https://unknown.example.org", // not a known key
		},
	}

	providers := factory.ForUser(user)
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	// Stable key order, not config map order.
	if providers[0].Key() != "wggesucht" || providers[1].Key() != "craigslist" {
		t.Fatalf("unexpected provider order: %s, %s", providers[0].Key(), providers[1].Key())
	}
}

func TestFactoryEmptySourceIsDisabled(t *testing.T) {
	t.Parallel()

	factory := NewFactory(&fakeBrowser{}, resty.New(), nil, nil, nil)
	providers := factory.ForUser(domain.User{ID: "u1", Providers: map[string]string{"immowelt": ""}})

	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0].IsEnabled() {
		t.Fatal("provider with empty source must report disabled")
	}
}

func TestNeedsBrowser(t *testing.T) {
	t.Parallel()

	feedOnly := []domain.User{{ID: "u1", Providers: map[string]string{"craigslist": "https://x", "kleinanzeigen": "https://y"}}}
	if NeedsBrowser(feedOnly) {
		t.Fatal("feed and api providers must not require a browser")
	}

	withDOM := []domain.User{{ID: "u1", Providers: map[string]string{"immoscout": "https://x"}}}
	if !NeedsBrowser(withDOM) {
		t.Fatal("embedded-state provider requires a browser")
	}
}
