package ports

import (
	"context"
	"encoding/json"
	"time"

	"flatwatch/internal/domain"
	"flatwatch/internal/extract"
)

// Provider is one external listing source. Scrape must never fail outward:
// on any internal error it reports zero (or partial) listings and updates its
// own consecutive-error state.
type Provider interface {
	Key() string
	IsEnabled() bool
	Scrape(ctx context.Context, maxResults int) []domain.Listing
	ConsecutiveErrors() int
}

// ListingRepository persists dedup checkpoints. The core touches storage only
// through this contract.
type ListingRepository interface {
	GetCheckpoints(ctx context.Context, userID, provider string) ([]string, error)
	SetCheckpoints(ctx context.Context, userID, provider string, hashes []string) error
	GetProviderCountForUser(ctx context.Context, userID string) (int, error)
	ClearUser(ctx context.Context, userID string) error
}

// BrowserService renders pages for DOM-based providers. Scrape evaluates a
// field map against the rendered document; Evaluate reads a page-embedded
// state blob. The session is shared; each call opens and releases its own tab.
type BrowserService interface {
	Initialize(ctx context.Context) error
	Scrape(ctx context.Context, pageURL, containerSelector string, fields map[string]extract.Expr, waitSelector string) ([]domain.RawListing, error)
	Evaluate(ctx context.Context, pageURL, script, waitSelector string) (json.RawMessage, error)
	Close(ctx context.Context) error
}

// NotificationSink receives the ordered new listings for one user and cycle.
type NotificationSink interface {
	Publish(ctx context.Context, user domain.User, listings []domain.Listing) error
}

// HealthReport aggregates one failure streak for admin alerting.
type HealthReport struct {
	FailedCycles  int
	ErrorsByName  map[string]int
	AffectedUsers int
	Samples       []domain.ErrorDetails
}

// AdminAlerter is the operator-facing channel for critical errors, aggregate
// failure reports, and lifecycle pass-through notifications.
type AdminAlerter interface {
	Critical(ctx context.Context, details domain.ErrorDetails)
	AggregateReport(ctx context.Context, report HealthReport)
	Lifecycle(ctx context.Context, event string)
}

// ErrorRecorder is the write side of the per-cycle error tracker, injected
// into providers so failures feed iteration-level alerting without any global
// monitoring state.
type ErrorRecorder interface {
	Record(provider, token string, err error)
}

// Scheduler controls when polling cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
