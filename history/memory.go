package history

import (
	"sync"
	"time"
)

// Memory is an in-memory Store. It backs tests and the session controller's
// overlay for records whose durable write failed.
type Memory struct {
	retention time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	records map[string]map[string]time.Time
	pages   map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory(retention time.Duration) *Memory {
	return &Memory{
		retention: retention,
		now:       time.Now,
		records:   make(map[string]map[string]time.Time),
		pages:     make(map[string]int),
	}
}

// SetClock replaces the time source used for expiry checks.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Memory) Has(query, imageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shownAt, ok := m.records[query][imageID]
	if !ok {
		return false, nil
	}
	return m.now().Sub(shownAt) < m.retention, nil
}

func (m *Memory) LastShown(query, imageID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shownAt, ok := m.records[query][imageID]
	return shownAt, ok, nil
}

func (m *Memory) Record(query, imageID string, shownAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.records[query]
	if !ok {
		q = make(map[string]time.Time)
		m.records[query] = q
	}
	q[imageID] = shownAt
	return nil
}

func (m *Memory) PurgeExpired(now time.Time) error {
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	for query, q := range m.records {
		for id, shownAt := range q {
			if shownAt.Before(cutoff) {
				delete(q, id)
			}
		}
		if len(q) == 0 {
			delete(m.records, query)
		}
	}
	return nil
}

func (m *Memory) Reset(query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, query)
	return nil
}

func (m *Memory) LastPage(query string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pages[query], nil
}

func (m *Memory) SetLastPage(query string, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[query] = page
	return nil
}

// Len reports the number of live records for a query.
func (m *Memory) Len(query string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records[query])
}
