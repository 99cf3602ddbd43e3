// Package checkpoint computes the "new since last check" subset of a scrape
// and maintains the persisted fingerprint baseline per (user, provider).
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// Size is the number of fingerprints kept per (user, provider) pair.
const Size = 5

// Engine diffs scrapes against stored checkpoints through the repository port.
type Engine struct {
	repo   ports.ListingRepository
	logger *slog.Logger
}

// NewEngine wires the persistence collaborator.
func NewEngine(repo ports.ListingRepository, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// Filter returns the listings that are new since the last successful check
// and persists the fresh checkpoint. current must be newest-first. A scrape
// that returned zero listings never mutates the stored checkpoint, so a
// failed pass cannot erase a good baseline. Repository errors propagate:
// continuing on inconsistent checkpoint state is worse than stopping.
func (e *Engine) Filter(ctx context.Context, userID, provider string, current []domain.Listing) ([]domain.Listing, error) {
	if len(current) == 0 {
		return nil, nil
	}

	stored, err := e.repo.GetCheckpoints(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints for %s/%s: %w", userID, provider, err)
	}

	fresh := computeNew(current, stored)

	if err := e.repo.SetCheckpoints(ctx, userID, provider, headHashes(current, Size)); err != nil {
		return nil, fmt.Errorf("store checkpoints for %s/%s: %w", userID, provider, err)
	}

	if e.logger != nil {
		e.logger.Debug("checkpoint updated",
			"user", userID, "provider", provider,
			"scraped", len(current), "new", len(fresh), "had_baseline", len(stored) > 0)
	}
	return fresh, nil
}

// computeNew walks the newest-first scrape until a listing's hash appears in
// the stored baseline, then stops. An empty baseline is a confirmation pass:
// only the newest listing counts as new, so first use does not flood the user
// with historical postings. When no hash matches at all (result order changed
// or the gap since the last check exceeds what the site exposes) every listing
// is returned as new. The possible flood is accepted: missing listings in a
// coverage gap would be worse than the odd duplicate alert.
func computeNew(current []domain.Listing, stored []string) []domain.Listing {
	if len(stored) == 0 {
		return current[:1]
	}

	known := make(map[string]struct{}, len(stored))
	for _, hash := range stored {
		known[hash] = struct{}{}
	}

	var fresh []domain.Listing
	for _, listing := range current {
		if _, ok := known[listing.Hash]; ok {
			break
		}
		fresh = append(fresh, listing)
	}
	return fresh
}

func headHashes(listings []domain.Listing, limit int) []string {
	if len(listings) < limit {
		limit = len(listings)
	}
	hashes := make([]string, 0, limit)
	for _, listing := range listings[:limit] {
		hashes = append(hashes, listing.Hash)
	}
	return hashes
}
