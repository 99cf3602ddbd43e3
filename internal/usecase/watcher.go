package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"flatwatch/internal/checkpoint"
	"flatwatch/internal/domain"
	"flatwatch/internal/health"
	"flatwatch/internal/ports"
)

// UserWatch binds one configured user to their instantiated providers for the
// lifetime of the process, so consecutive-error state survives across cycles.
type UserWatch struct {
	User      domain.User
	Providers []ports.Provider
}

// UserScrapeResult is one user's aggregated outcome for a single cycle.
type UserScrapeResult struct {
	AllListings      []domain.Listing
	NewListings      []domain.Listing
	ByProvider       map[string][]domain.Listing
	ProviderStatuses []domain.ProviderStatus
}

// WatcherDeps wires the collaborators into the cycle orchestrator.
type WatcherDeps struct {
	Checkpoints *checkpoint.Engine
	Tracker     *health.IterationTracker
	Sink        ports.NotificationSink
	Logger      *slog.Logger
	MaxResults  int
}

// Watcher runs polling cycles: users sequentially, each user's enabled
// providers concurrently.
type Watcher struct {
	checkpoints *checkpoint.Engine
	tracker     *health.IterationTracker
	sink        ports.NotificationSink
	logger      *slog.Logger
	maxResults  int
}

// NewWatcher constructs the orchestration component.
func NewWatcher(deps WatcherDeps) *Watcher {
	maxResults := deps.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Watcher{
		checkpoints: deps.Checkpoints,
		tracker:     deps.Tracker,
		sink:        deps.Sink,
		logger:      deps.Logger,
		maxResults:  maxResults,
	}
}

// RunCycle executes one full polling pass across all users. Provider failures
// stay inside the providers; only repository failures propagate, because
// continuing with inconsistent checkpoint state would be worse than stopping.
func (w *Watcher) RunCycle(ctx context.Context, watches []UserWatch) error {
	if w.tracker != nil {
		w.tracker.BeginCycle()
	}

	for _, watch := range watches {
		result, err := w.ScrapeForUser(ctx, watch.User, watch.Providers)
		if err != nil {
			return fmt.Errorf("user %s: %w", watch.User.ID, err)
		}

		w.debug("user pass done",
			"user", watch.User.ID,
			"listings", len(result.AllListings),
			"new", len(result.NewListings))

		if len(result.NewListings) == 0 || w.sink == nil {
			continue
		}
		if err := w.sink.Publish(ctx, watch.User, result.NewListings); err != nil {
			// Delivery is at-least-effort, not part of the core contract.
			if w.logger != nil {
				w.logger.Error("publish new listings", "user", watch.User.ID, "error", err)
			}
		}
	}

	if w.tracker != nil {
		w.tracker.FinishCycle(ctx)
	}
	return nil
}

// ScrapeForUser fans out over the user's enabled providers, waits for all of
// them, then computes the new-listing subsets and provider statuses. Provider
// isolation comes from the Scrape contract: providers never fail outward, so
// one blocked site cannot affect another's results.
func (w *Watcher) ScrapeForUser(ctx context.Context, user domain.User, providers []ports.Provider) (UserScrapeResult, error) {
	enabled := make([]ports.Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}

	scraped := make([][]domain.Listing, len(enabled))
	var wg sync.WaitGroup
	for i, p := range enabled {
		wg.Add(1)
		go func(slot int, p ports.Provider) {
			defer wg.Done()
			scraped[slot] = p.Scrape(ctx, w.maxResults)
		}(i, p)
	}
	wg.Wait()

	result := UserScrapeResult{
		ByProvider:       make(map[string][]domain.Listing, len(enabled)),
		ProviderStatuses: make([]domain.ProviderStatus, 0, len(providers)),
	}

	for i, p := range enabled {
		listings := scraped[i]
		result.ByProvider[p.Key()] = listings
		result.AllListings = append(result.AllListings, listings...)

		fresh, err := w.checkpoints.Filter(ctx, user.ID, p.Key(), listings)
		if err != nil {
			return UserScrapeResult{}, err
		}
		result.NewListings = append(result.NewListings, fresh...)
	}

	for _, p := range providers {
		count := len(result.ByProvider[p.Key()])
		errs := p.ConsecutiveErrors()
		if errs >= health.UnhealthyThreshold && w.logger != nil {
			w.logger.Warn("provider unhealthy",
				"user", user.ID, "provider", p.Key(), "consecutive_errors", errs)
		}
		result.ProviderStatuses = append(result.ProviderStatuses, domain.ProviderStatus{
			Name:              p.Key(),
			Enabled:           p.IsEnabled(),
			LastScrapeCount:   count,
			ConsecutiveErrors: errs,
			Healthy:           p.IsEnabled() && health.Healthy(errs, count),
		})
	}

	return result, nil
}

func (w *Watcher) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
