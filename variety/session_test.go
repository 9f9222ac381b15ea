package variety

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gosplash/history"
	"gosplash/pkg/logger"
	"gosplash/unsplash"
)

const testRetention = 30 * 24 * time.Hour

func testController(provider SearchProvider, store history.Store) *Controller {
	c := NewController(provider, store, testRetention, DefaultPolicy(), logger.New())
	fixed := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return fixed })
	return c
}

func TestController_MountainScenario(t *testing.T) {
	// Three fixed pages of ten ids. Nine picks stay Exploring and distinct;
	// the tenth crosses the threshold into Expanding-eligible state.
	provider := newFakeProvider(3)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		if got := c.policy.Select(c.ShownCount("tab-1", "mountain")); i < 10 && got != StrategyExploring {
			t.Fatalf("call %d ran under %v, want exploring", i+1, got)
		}
		img, err := c.Next(ctx, "tab-1", "mountain")
		if err != nil {
			t.Fatalf("Next #%d: %v", i+1, err)
		}
		if _, dup := seen[img.ID]; dup {
			t.Fatalf("Next #%d repeated %s", i+1, img.ID)
		}
		seen[img.ID] = struct{}{}
	}

	if got := c.ShownCount("tab-1", "mountain"); got != 10 {
		t.Fatalf("shownCount = %d, want 10", got)
	}
	if got := c.policy.Select(10); got != StrategyExpanding {
		t.Fatalf("strategy after 10 picks = %v, want expanding", got)
	}
}

func TestController_StrategyNeverRegresses(t *testing.T) {
	provider := newFakeProvider(100)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	prev := StrategyExploring
	for i := 0; i < 40; i++ {
		cur := c.policy.Select(c.ShownCount("tab-1", "mountain"))
		if cur < prev {
			t.Fatalf("strategy regressed to %v after %v at pick %d", cur, prev, i+1)
		}
		prev = cur
		if _, err := c.Next(ctx, "tab-1", "mountain"); err != nil {
			t.Fatalf("Next #%d: %v", i+1, err)
		}
	}
	if prev != StrategyDeepSearch {
		t.Fatalf("never reached deep search after 40 picks, ended at %v", prev)
	}
}

func TestController_ResetReturnsToExploring(t *testing.T) {
	provider := newFakeProvider(1)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	var shown []string
	for i := 0; i < 5; i++ {
		img, err := c.Next(ctx, "tab-1", "mountain")
		if err != nil {
			t.Fatalf("Next #%d: %v", i+1, err)
		}
		shown = append(shown, img.ID)
	}

	if err := c.Reset("tab-1", "mountain"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := c.ShownCount("tab-1", "mountain"); got != 0 {
		t.Fatalf("shownCount after reset = %d, want 0", got)
	}
	for _, id := range shown {
		if seen, _ := store.Has("mountain", id); seen {
			t.Fatalf("history record for %s survived reset", id)
		}
	}

	// The next pick runs under Exploring again and may legitimately return
	// an image from before the reset.
	img, err := c.Next(ctx, "tab-1", "mountain")
	if err != nil {
		t.Fatalf("Next after reset: %v", err)
	}
	if img.ID == "" {
		t.Fatal("Next after reset returned an empty image")
	}
}

func TestController_FailedNextLeavesStateUnchanged(t *testing.T) {
	provider := newFakeProvider(1)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	if _, err := c.Next(ctx, "tab-1", "mountain"); err != nil {
		t.Fatalf("Next: %v", err)
	}

	provider.mu.Lock()
	provider.err = errors.New("boom")
	provider.mu.Unlock()

	if _, err := c.Next(ctx, "tab-1", "mountain"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("got %v, want ErrProviderUnavailable", err)
	}
	if got := c.ShownCount("tab-1", "mountain"); got != 1 {
		t.Fatalf("failed pick advanced shownCount to %d", got)
	}

	// Retrying after the provider recovers is safe.
	provider.mu.Lock()
	provider.err = nil
	provider.mu.Unlock()
	if _, err := c.Next(ctx, "tab-1", "mountain"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := c.ShownCount("tab-1", "mountain"); got != 2 {
		t.Fatalf("shownCount after retry = %d, want 2", got)
	}
}

// hookProvider runs a hook before delegating to the fake provider; the
// cancellation test uses it to hold a pick in flight.
type hookProvider struct {
	*fakeProvider
	hook func(ctx context.Context) error
}

func (h *hookProvider) Search(ctx context.Context, query string, page int) ([]unsplash.Image, error) {
	if err := h.hook(ctx); err != nil {
		return nil, err
	}
	return h.fakeProvider.Search(ctx, query, page)
}

func TestController_NewNextCancelsInflightPick(t *testing.T) {
	provider := newFakeProvider(1)
	entered := make(chan struct{})
	var once sync.Once
	gated := &hookProvider{
		fakeProvider: provider,
		hook: func(ctx context.Context) error {
			var block bool
			once.Do(func() { block = true })
			if block {
				close(entered)
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	}

	store := history.NewMemory(testRetention)
	c := testController(gated, store)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Next(ctx, "tab-1", "mountain")
		firstDone <- err
	}()
	<-entered

	img, err := c.Next(ctx, "tab-1", "mountain")
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if img.ID == "" {
		t.Fatal("second Next returned an empty image")
	}

	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("superseded Next returned %v, want context.Canceled", err)
	}
	if got := c.ShownCount("tab-1", "mountain"); got != 1 {
		t.Fatalf("shownCount = %d, want 1 (only the second pick counts)", got)
	}
}

func TestController_ResetCancelsInflightPick(t *testing.T) {
	provider := newFakeProvider(1)
	entered := make(chan struct{})
	var once sync.Once
	gated := &hookProvider{
		fakeProvider: provider,
		hook: func(ctx context.Context) error {
			var block bool
			once.Do(func() { block = true })
			if block {
				close(entered)
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	}

	store := history.NewMemory(testRetention)
	c := testController(gated, store)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Next(ctx, "tab-1", "mountain")
		firstDone <- err
	}()
	<-entered

	if err := c.Reset("tab-1", "mountain"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("reset-aborted Next returned %v, want context.Canceled", err)
	}
	if got := c.ShownCount("tab-1", "mountain"); got != 0 {
		t.Fatalf("shownCount after reset = %d, want 0", got)
	}
	if store.Len("mountain") != 0 {
		t.Fatal("aborted pick left a history record behind")
	}
}

func TestController_ClockReachesHistoryStore(t *testing.T) {
	// Records are stamped with the pinned clock a year away from the wall
	// clock; dedup only holds if the store measures retention against the
	// same clock.
	provider := newFakeProvider(1)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	img, err := c.Next(context.Background(), "tab-1", "mountain")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if seen, herr := store.Has("mountain", img.ID); herr != nil || !seen {
		t.Fatalf("Has = (%v, %v), want the record visible under the pinned clock", seen, herr)
	}
}

func TestController_PurgeExpiredCoversOverlay(t *testing.T) {
	provider := newFakeProvider(1)
	durable := history.NewMemory(testRetention)
	c := testController(provider, failingStore{durable})

	if _, err := c.Next(context.Background(), "tab-1", "mountain"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := c.store.overlay.Len("mountain"); got != 1 {
		t.Fatalf("overlay holds %d records, want 1", got)
	}

	fixed := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	if err := c.PurgeExpired(fixed.Add(testRetention + time.Hour)); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if got := c.store.overlay.Len("mountain"); got != 0 {
		t.Fatalf("overlay still holds %d records after purge", got)
	}
}

func TestController_EndSessionDiscardsState(t *testing.T) {
	provider := newFakeProvider(1)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	img, err := c.Next(ctx, "tab-1", "mountain")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	c.EndSession("tab-1")
	if got := c.ShownCount("tab-1", "mountain"); got != 0 {
		t.Fatalf("shownCount after EndSession = %d, want 0", got)
	}
	// History is owned by the store and survives the session.
	if seen, _ := store.Has("mountain", img.ID); !seen {
		t.Fatal("EndSession wiped durable history")
	}
}

// failingStore rejects every durable write.
type failingStore struct {
	history.Store
}

func (f failingStore) Record(query, imageID string, shownAt time.Time) error {
	return errors.New("disk full")
}

func TestController_PersistenceFailureIsNonFatal(t *testing.T) {
	provider := newFakeProvider(1)
	durable := history.NewMemory(testRetention)
	c := testController(provider, failingStore{durable})

	ctx := context.Background()
	first, err := c.Next(ctx, "tab-1", "mountain")
	if err != nil {
		t.Fatalf("Next with failing store: %v", err)
	}
	second, err := c.Next(ctx, "tab-1", "mountain")
	if err != nil {
		t.Fatalf("second Next with failing store: %v", err)
	}
	// The in-memory overlay still deduplicates the current session.
	if first.ID == second.ID {
		t.Fatalf("dedup lost with failing store: %s twice", first.ID)
	}
	if durable.Len("mountain") != 0 {
		t.Fatal("failing store unexpectedly persisted records")
	}
}

func TestController_SessionsAreIsolated(t *testing.T) {
	provider := newFakeProvider(1)
	store := history.NewMemory(testRetention)
	c := testController(provider, store)

	ctx := context.Background()
	if _, err := c.Next(ctx, "tab-1", "mountain"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := c.ShownCount("tab-2", "mountain"); got != 0 {
		t.Fatalf("tab-2 shownCount = %d, want 0", got)
	}
}
