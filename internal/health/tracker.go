// Package health tracks provider failures across a polling cycle and raises
// one aggregate alert per unbroken streak of failing cycles.
package health

import (
	"context"
	"log/slog"
	"sync"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// UnhealthyThreshold is the consecutive-error count at which a single
// provider is considered structurally blocked rather than transiently failing.
const UnhealthyThreshold = 3

// defaultAlertThreshold is the number of consecutive failed cycles before the
// aggregate admin alert fires.
const defaultAlertThreshold = 3

// IterationTracker collects provider errors during one cycle. Record is safe
// for the concurrent writers of a user's provider fan-out; BeginCycle and
// FinishCycle are called by the single cycle runner.
type IterationTracker struct {
	alerter   ports.AdminAlerter
	logger    *slog.Logger
	threshold int

	mu           sync.Mutex
	cycleErrors  map[string]map[string]struct{}
	cycleSamples []domain.ErrorDetails

	consecutiveFailed int
	notified          bool
}

// NewIterationTracker wires the alerting collaborator. threshold <= 0 selects
// the default.
func NewIterationTracker(alerter ports.AdminAlerter, logger *slog.Logger, threshold int) *IterationTracker {
	if threshold <= 0 {
		threshold = defaultAlertThreshold
	}
	return &IterationTracker{
		alerter:     alerter,
		logger:      logger,
		threshold:   threshold,
		cycleErrors: map[string]map[string]struct{}{},
	}
}

// BeginCycle clears the per-cycle error collection.
func (t *IterationTracker) BeginCycle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycleErrors = map[string]map[string]struct{}{}
	t.cycleSamples = nil
}

// Record registers a provider error keyed by a distinguishing token (the
// affected user or url), deduplicated within the cycle.
func (t *IterationTracker) Record(provider, token string, err error) {
	if err == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tokens, ok := t.cycleErrors[provider]
	if !ok {
		tokens = map[string]struct{}{}
		t.cycleErrors[provider] = tokens
	}
	if _, seen := tokens[token]; seen {
		return
	}
	tokens[token] = struct{}{}

	if len(t.cycleSamples) < 10 {
		t.cycleSamples = append(t.cycleSamples, domain.ErrorDetails{
			Type:     domain.Classify(err),
			Message:  err.Error(),
			Provider: provider,
			Source:   token,
		})
	}
}

// FinishCycle closes the cycle: a cycle with errors extends the failure
// streak, a clean cycle resets it. Exactly one aggregate alert is emitted per
// streak, at the cycle where the threshold is first reached.
func (t *IterationTracker) FinishCycle(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.cycleErrors) == 0 {
		if t.consecutiveFailed > 0 && t.logger != nil {
			t.logger.Info("error streak cleared", "failed_cycles", t.consecutiveFailed)
		}
		t.consecutiveFailed = 0
		t.notified = false
		return
	}

	t.consecutiveFailed++
	if t.logger != nil {
		t.logger.Warn("cycle finished with errors",
			"providers", len(t.cycleErrors), "consecutive_failed", t.consecutiveFailed)
	}

	if t.consecutiveFailed < t.threshold || t.notified {
		return
	}
	t.notified = true

	if t.alerter != nil {
		t.alerter.AggregateReport(ctx, t.buildReportLocked())
	}
}

func (t *IterationTracker) buildReportLocked() ports.HealthReport {
	counts := make(map[string]int, len(t.cycleErrors))
	affected := map[string]struct{}{}
	for provider, tokens := range t.cycleErrors {
		counts[provider] = len(tokens)
		for token := range tokens {
			affected[token] = struct{}{}
		}
	}
	return ports.HealthReport{
		FailedCycles:  t.consecutiveFailed,
		ErrorsByName:  counts,
		AffectedUsers: len(affected),
		Samples:       t.cycleSamples,
	}
}

// Healthy derives the per-cycle provider verdict: zero consecutive errors and
// at least one listing in the last scrape. A provider that succeeds yet
// returns nothing is treated as a possible silent block.
func Healthy(consecutiveErrors, lastScrapeCount int) bool {
	return consecutiveErrors == 0 && lastScrapeCount > 0
}
