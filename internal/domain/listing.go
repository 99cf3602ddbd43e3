package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RawListing is the loosely-typed field bag produced by extraction before
// normalization. Fields may be absent or noisy; providers decide what is usable.
type RawListing struct {
	ID          string
	Title       string
	Price       string
	Size        string
	Address     string
	Link        string
	Description string
	Image       string
}

// Listing is the canonical record handed to dedup and notification.
// Link is absolute after normalization; Hash identifies the underlying posting
// across scrapes; Source names the owning provider.
type Listing struct {
	ID          string
	Title       string
	Price       string
	Size        string
	Address     string
	Link        string
	Description string
	Image       string
	Hash        string
	Source      string
}

// Checkpoint holds the most recent fingerprints seen for one (user, provider)
// pair, newest-first. It is overwritten on every successful scrape, never merged.
type Checkpoint struct {
	UserID    string
	Provider  string
	Hashes    []string
	UpdatedAt time.Time
}

// ProviderStatus is recomputed every cycle and discarded after being reported.
type ProviderStatus struct {
	Name              string
	Enabled           bool
	LastScrapeCount   int
	ConsecutiveErrors int
	Healthy           bool
}

// User describes one configured watcher: who to notify and which provider
// sources they subscribed to. A provider key absent from Providers is disabled.
type User struct {
	ID        string
	Name      string
	ChatID    string
	Providers map[string]string
}

// ErrorType classifies the probable cause of a provider failure.
type ErrorType string

const (
	ErrTimeout      ErrorType = "timeout"
	ErrNavigation   ErrorType = "navigation"
	ErrForbidden    ErrorType = "forbidden"
	ErrRateLimited  ErrorType = "rate_limited"
	ErrCaptcha      ErrorType = "captcha"
	ErrSelector     ErrorType = "selector"
	ErrAccessDenied ErrorType = "access_denied"
	ErrUnknown      ErrorType = "unknown"
)

// ErrorDetails is the structured payload forwarded to admin alerting.
type ErrorDetails struct {
	Type     ErrorType
	Message  string
	Provider string
	Source   string
}

// Fingerprint computes the identity hash of a listing from its stable fields.
// The source plus the provider-assigned id pin the posting; the link is the
// fallback when a source emits no id. Cosmetic fields (title, price text,
// description) are excluded so re-scrapes of the same posting hash identically.
func Fingerprint(source, id, link string) string {
	key := id
	if key == "" {
		key = link
	}
	sum := sha256.Sum256([]byte(source + "|" + key))
	return hex.EncodeToString(sum[:8])
}
