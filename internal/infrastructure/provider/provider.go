// Package provider implements the concrete listing sources. Each variant
// obtains raw records through exactly one strategy (rendered DOM, JSON API,
// feed, or page-embedded state), normalizes them into canonical listings, and
// converts every internal failure into "zero listings + error state" instead
// of letting it escape.
package provider

import (
	"context"
	"log/slog"
	"sync"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// unit carries the state shared by all provider variants: identity, source
// config, and the consecutive-error counter. The counter is mutex-guarded
// because polling cycles may overlap.
type unit struct {
	key      string
	source   string
	token    string
	logger   *slog.Logger
	recorder ports.ErrorRecorder

	mu   sync.Mutex
	errs int
}

func newUnit(key, source, token string, logger *slog.Logger, recorder ports.ErrorRecorder) unit {
	return unit{key: key, source: source, token: token, logger: logger, recorder: recorder}
}

func (u *unit) Key() string { return u.key }

// IsEnabled reports whether the provider has a source to scrape.
func (u *unit) IsEnabled() bool { return u.source != "" }

func (u *unit) ConsecutiveErrors() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.errs
}

// fail classifies and logs the error, feeds the cycle tracker, and extends
// the consecutive-error streak. Callers return an empty result afterwards.
func (u *unit) fail(err error) {
	u.mu.Lock()
	u.errs++
	streak := u.errs
	u.mu.Unlock()

	if u.logger != nil {
		u.logger.Warn("scrape failed",
			"provider", u.key,
			"cause", string(domain.Classify(err)),
			"consecutive_errors", streak,
			"error", err)
	}
	if u.recorder != nil {
		u.recorder.Record(u.key, u.token, err)
	}
}

// succeed resets the streak after a fully successful pass.
func (u *unit) succeed(count int) {
	u.mu.Lock()
	u.errs = 0
	u.mu.Unlock()

	if u.logger != nil {
		u.logger.Debug("scrape ok", "provider", u.key, "listings", count)
	}
}

func truncate(listings []domain.Listing, maxResults int) []domain.Listing {
	if maxResults > 0 && len(listings) > maxResults {
		return listings[:maxResults]
	}
	return listings
}

var _ ports.Provider = (*DOMProvider)(nil)
var _ ports.Provider = (*APIProvider)(nil)
var _ ports.Provider = (*FeedProvider)(nil)
var _ ports.Provider = (*EmbeddedProvider)(nil)

// noCtx guards against callers passing a nil context into the network layer.
func noCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
