package variety

import (
	"context"
	"sync"
	"time"

	"gosplash/history"
	"gosplash/pkg/logger"
	"gosplash/unsplash"
)

// Controller orchestrates picks per user session. Each (session, query) pair
// moves Exploring -> Expanding -> DeepSearch as its shown count crosses the
// policy thresholds; only Reset goes back. A new Next or a Reset for a pair
// with a pick in flight cancels that pick and discards its result.
type Controller struct {
	picker *Picker
	store  *overlayStore
	policy Policy
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the in-memory state of one user session. Never persisted.
type session struct {
	queries map[string]*queryState
}

// queryState tracks progression for one query within a session.
type queryState struct {
	shownCount int
	lastPage   int
	cursor     int

	// gen increments every time a pick is issued for this state; a pick
	// whose gen no longer matches was superseded and its result is dropped.
	gen    uint64
	cancel context.CancelFunc
}

// NewController wires the engine together. The provider and store are
// injected so tests can substitute deterministic fakes.
func NewController(provider SearchProvider, store history.Store, retention time.Duration, policy Policy, log *logger.Logger) *Controller {
	policy = policy.normalize()
	wrapped := newOverlayStore(store, retention, log)
	return &Controller{
		picker:   NewPicker(provider, wrapped, policy, log),
		store:    wrapped,
		policy:   policy,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// SetClock replaces the time source of the controller and its history
// stores. Tests use this to pin the seed's hour bucket and the retention
// window to the same instant.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
	c.store.setClock(now)
}

// PurgeExpired drops expired records from every history layer the controller
// writes to, the durable store and the in-memory overlay alike.
func (c *Controller) PurgeExpired(now time.Time) error {
	return c.store.PurgeExpired(now)
}

// Next returns the next image for (sessionID, query), creating session state
// as needed. On error the query state is left untouched, so retrying is
// safe.
func (c *Controller) Next(ctx context.Context, sessionID, query string) (unsplash.Image, error) {
	c.mu.Lock()
	st := c.state(sessionID, query)
	if st.cancel != nil {
		// A pick is still in flight for this pair; supersede it.
		st.cancel()
	}
	pickCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	st.gen++
	gen := st.gen
	shown := st.shownCount
	strategy := c.policy.Select(shown)
	seed := Seed(query, c.now())
	c.mu.Unlock()

	result, err := c.picker.Pick(pickCtx, query, strategy, seed, shown)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.lookup(sessionID, query)
	if cur == nil || cur.gen != gen {
		// Superseded by a newer Next, a Reset, or EndSession.
		if err == nil {
			err = context.Canceled
		}
		return unsplash.Image{}, err
	}
	cur.cancel = nil
	if err != nil {
		return unsplash.Image{}, err
	}

	if recErr := c.store.Record(query, result.Image.ID, c.now()); recErr != nil {
		c.log.Warn("Failed to record shown image", "query", query, "error", recErr)
	}
	cur.shownCount++
	cur.cursor = result.Index
	if result.Page > cur.lastPage {
		cur.lastPage = result.Page
		if pErr := c.store.SetLastPage(query, result.Page); pErr != nil {
			c.log.Warn("Failed to persist last page", "query", query, "error", pErr)
		}
	}

	c.log.Info("Picked image",
		"session", sessionID, "query", query, "strategy", strategy.String(),
		"image", result.Image.ID, "page", result.Page, "shown", cur.shownCount)
	return result.Image, nil
}

// Reset clears the query's session state and its history records, restarting
// the strategy progression at Exploring. This is the "fresh" control.
func (c *Controller) Reset(sessionID, query string) error {
	c.mu.Lock()
	if st := c.lookup(sessionID, query); st != nil {
		if st.cancel != nil {
			st.cancel()
		}
		delete(c.sessions[sessionID].queries, query)
	}
	c.mu.Unlock()

	c.log.Info("Reset query history", "session", sessionID, "query", query)
	return c.store.Reset(query)
}

// EndSession discards all in-memory state for a session and cancels any
// in-flight picks. History records stay; they belong to the store.
func (c *Controller) EndSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	for _, st := range sess.queries {
		if st.cancel != nil {
			st.cancel()
		}
	}
	delete(c.sessions, sessionID)
	c.log.Debug("Ended session", "session", sessionID)
}

// ShownCount reports how many images this session has been shown for a
// query.
func (c *Controller) ShownCount(sessionID, query string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.lookup(sessionID, query); st != nil {
		return st.shownCount
	}
	return 0
}

// state returns the query state, creating session and state as needed.
// Callers hold c.mu.
func (c *Controller) state(sessionID, query string) *queryState {
	sess, ok := c.sessions[sessionID]
	if !ok {
		sess = &session{queries: make(map[string]*queryState)}
		c.sessions[sessionID] = sess
	}
	st, ok := sess.queries[query]
	if !ok {
		st = &queryState{}
		sess.queries[query] = st
	}
	return st
}

// lookup returns the query state or nil. Callers hold c.mu.
func (c *Controller) lookup(sessionID, query string) *queryState {
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	return sess.queries[query]
}
