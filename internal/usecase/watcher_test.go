package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatwatch/internal/checkpoint"
	"flatwatch/internal/domain"
	"flatwatch/internal/health"
	"flatwatch/internal/ports"
)

// stubProvider mimics the never-throws provider contract with canned results.
type stubProvider struct {
	key      string
	enabled  bool
	listings []domain.Listing
	failWith error

	mu   sync.Mutex
	errs int
}

func (s *stubProvider) Key() string     { return s.key }
func (s *stubProvider) IsEnabled() bool { return s.enabled }

func (s *stubProvider) Scrape(_ context.Context, maxResults int) []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		s.errs++
		return nil
	}
	s.errs = 0
	if len(s.listings) > maxResults {
		return s.listings[:maxResults]
	}
	return s.listings
}

func (s *stubProvider) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

type memoryRepo struct {
	mu          sync.Mutex
	checkpoints map[string][]string
	fail        error
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{checkpoints: map[string][]string{}} }

func (m *memoryRepo) GetCheckpoints(_ context.Context, userID, provider string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return m.checkpoints[userID+"/"+provider], nil
}

func (m *memoryRepo) SetCheckpoints(_ context.Context, userID, provider string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.checkpoints[userID+"/"+provider] = hashes
	return nil
}

func (m *memoryRepo) GetProviderCountForUser(_ context.Context, _ string) (int, error) { return 0, nil }
func (m *memoryRepo) ClearUser(_ context.Context, _ string) error                     { return nil }

type captureSink struct {
	mu        sync.Mutex
	published map[string][]domain.Listing
}

func (c *captureSink) Publish(_ context.Context, user domain.User, listings []domain.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = map[string][]domain.Listing{}
	}
	c.published[user.ID] = append(c.published[user.ID], listings...)
	return nil
}

func mkListings(source string, hashes ...string) []domain.Listing {
	out := make([]domain.Listing, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, domain.Listing{Hash: h, Source: source, Title: "flat " + h})
	}
	return out
}

func newWatcher(repo ports.ListingRepository, sink ports.NotificationSink) *Watcher {
	return NewWatcher(WatcherDeps{
		Checkpoints: checkpoint.NewEngine(repo, nil),
		Tracker:     health.NewIterationTracker(nil, nil, 3),
		Sink:        sink,
		MaxResults:  20,
	})
}

func TestProviderIsolation(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	watcher := newWatcher(repo, nil)

	good := &stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "a1", "a2", "a3")}
	broken := &stubProvider{key: "immowelt", enabled: true, failWith: errors.New("captcha detected")}

	result, err := watcher.ScrapeForUser(context.Background(), domain.User{ID: "u1"}, []ports.Provider{good, broken})
	require.NoError(t, err)

	// Empty prior checkpoint: confirmation pass announces only the newest.
	require.Len(t, result.NewListings, 1)
	assert.Equal(t, "a1", result.NewListings[0].Hash)
	assert.Len(t, result.AllListings, 3, "broken provider must not affect the good one")

	statuses := map[string]domain.ProviderStatus{}
	for _, s := range result.ProviderStatuses {
		statuses[s.Name] = s
	}
	assert.True(t, statuses["wggesucht"].Healthy)
	assert.False(t, statuses["immowelt"].Healthy)
	assert.Equal(t, 1, statuses["immowelt"].ConsecutiveErrors)
}

func TestScrapeForUserSkipsDisabledProviders(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	watcher := newWatcher(repo, nil)

	disabled := &stubProvider{key: "craigslist", enabled: false, listings: mkListings("craigslist", "x1")}
	result, err := watcher.ScrapeForUser(context.Background(), domain.User{ID: "u1"}, []ports.Provider{disabled})
	require.NoError(t, err)

	assert.Empty(t, result.AllListings)
	require.Len(t, result.ProviderStatuses, 1)
	assert.False(t, result.ProviderStatuses[0].Enabled)
	assert.False(t, result.ProviderStatuses[0].Healthy)
}

func TestScrapeForUserMergePreservesProviderOrder(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	// Pre-seed both checkpoints so every scraped listing counts as new.
	repo.checkpoints["u1/wggesucht"] = []string{"old"}
	repo.checkpoints["u1/craigslist"] = []string{"old"}
	watcher := newWatcher(repo, nil)

	a := &stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "a1", "a2")}
	b := &stubProvider{key: "craigslist", enabled: true, listings: mkListings("craigslist", "b1", "b2")}

	result, err := watcher.ScrapeForUser(context.Background(), domain.User{ID: "u1"}, []ports.Provider{a, b})
	require.NoError(t, err)

	require.Len(t, result.NewListings, 4)
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, []string{
		result.NewListings[0].Hash, result.NewListings[1].Hash,
		result.NewListings[2].Hash, result.NewListings[3].Hash,
	})
}

func TestRunCyclePublishesOnlyNewListings(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	sink := &captureSink{}
	watcher := newWatcher(repo, sink)

	p := &stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "h1", "h2")}
	watches := []UserWatch{{User: domain.User{ID: "u1", ChatID: "100"}, Providers: []ports.Provider{p}}}

	// First cycle: confirmation pass, one listing announced.
	require.NoError(t, watcher.RunCycle(context.Background(), watches))
	require.Len(t, sink.published["u1"], 1)

	// Second cycle with identical results: nothing new, nothing published.
	require.NoError(t, watcher.RunCycle(context.Background(), watches))
	assert.Len(t, sink.published["u1"], 1)

	// A fresh listing appears on top.
	p.listings = mkListings("wggesucht", "h0", "h1", "h2")
	require.NoError(t, watcher.RunCycle(context.Background(), watches))
	require.Len(t, sink.published["u1"], 2)
	assert.Equal(t, "h0", sink.published["u1"][1].Hash)
}

func TestRunCycleFailedProviderLeavesCheckpointAlone(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	watcher := newWatcher(repo, nil)

	p := &stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "h1", "h2")}
	watches := []UserWatch{{User: domain.User{ID: "u1"}, Providers: []ports.Provider{p}}}

	require.NoError(t, watcher.RunCycle(context.Background(), watches))
	before := append([]string(nil), repo.checkpoints["u1/wggesucht"]...)

	p.failWith = errors.New("server returned 403 Forbidden")
	require.NoError(t, watcher.RunCycle(context.Background(), watches))

	assert.Equal(t, before, repo.checkpoints["u1/wggesucht"], "a failed scrape must not erase the baseline")
}

func TestRunCycleRepositoryFailureIsFatal(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	repo.fail = errors.New("pq: connection refused")
	watcher := newWatcher(repo, nil)

	p := &stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "h1")}
	err := watcher.RunCycle(context.Background(), []UserWatch{{User: domain.User{ID: "u1"}, Providers: []ports.Provider{p}}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1")
}

func TestUsersProcessedSequentially(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	sink := &captureSink{}
	watcher := newWatcher(repo, sink)

	watches := []UserWatch{
		{User: domain.User{ID: "u1"}, Providers: []ports.Provider{
			&stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "a1")},
		}},
		{User: domain.User{ID: "u2"}, Providers: []ports.Provider{
			&stubProvider{key: "wggesucht", enabled: true, listings: mkListings("wggesucht", "b1")},
		}},
	}

	require.NoError(t, watcher.RunCycle(context.Background(), watches))
	assert.Len(t, sink.published["u1"], 1)
	assert.Len(t, sink.published["u2"], 1)
	// Checkpoints are scoped per user even for the same provider key.
	assert.NotEqual(t, repo.checkpoints["u1/wggesucht"], nil)
	assert.Equal(t, []string{"a1"}, repo.checkpoints["u1/wggesucht"])
	assert.Equal(t, []string{"b1"}, repo.checkpoints["u2/wggesucht"])
}
