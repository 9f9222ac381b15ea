package variety

import (
	"time"

	"gosplash/history"
	"gosplash/pkg/logger"
)

// overlayStore keeps the current process deduplicating even when the durable
// history store cannot be written: a failed write lands in an in-memory
// overlay instead, so only future sessions lose dedup quality.
type overlayStore struct {
	durable history.Store
	overlay *history.Memory
	log     *logger.Logger
}

func newOverlayStore(durable history.Store, retention time.Duration, log *logger.Logger) *overlayStore {
	return &overlayStore{
		durable: durable,
		overlay: history.NewMemory(retention),
		log:     log,
	}
}

// setClock pins the time source of both layers. The durable store opts in by
// exposing a SetClock of its own, as the bbolt and memory stores do.
func (o *overlayStore) setClock(now func() time.Time) {
	o.overlay.SetClock(now)
	if durable, ok := o.durable.(interface{ SetClock(func() time.Time) }); ok {
		durable.SetClock(now)
	}
}

func (o *overlayStore) Has(query, imageID string) (bool, error) {
	if seen, _ := o.overlay.Has(query, imageID); seen {
		return true, nil
	}
	return o.durable.Has(query, imageID)
}

func (o *overlayStore) LastShown(query, imageID string) (time.Time, bool, error) {
	shownAt, ok, err := o.durable.LastShown(query, imageID)
	if err == nil && ok {
		return shownAt, true, nil
	}
	if shownAt, ok, _ := o.overlay.LastShown(query, imageID); ok {
		return shownAt, true, nil
	}
	return time.Time{}, false, err
}

func (o *overlayStore) Record(query, imageID string, shownAt time.Time) error {
	if err := o.durable.Record(query, imageID, shownAt); err != nil {
		o.log.Warn("History write failed, keeping record in memory only",
			"query", query, "image", imageID, "error", err)
		return o.overlay.Record(query, imageID, shownAt)
	}
	return nil
}

func (o *overlayStore) PurgeExpired(now time.Time) error {
	o.overlay.PurgeExpired(now)
	return o.durable.PurgeExpired(now)
}

func (o *overlayStore) Reset(query string) error {
	o.overlay.Reset(query)
	return o.durable.Reset(query)
}

func (o *overlayStore) LastPage(query string) (int, error) {
	return o.durable.LastPage(query)
}

func (o *overlayStore) SetLastPage(query string, page int) error {
	return o.durable.SetLastPage(query, page)
}
