// Package history tracks which images have already been shown for a query.
// Records are durable and expire after a retention window, so an image
// becomes eligible again once it has been out of rotation long enough.
package history

import "time"

// Store is the persisted mapping from (query, image id) to the time the
// image was last shown. Implementations must make Record and PurgeExpired
// safe under concurrent use; readers observing a record disappear mid-purge
// is acceptable.
type Store interface {
	// Has reports whether a non-expired record exists.
	Has(query, imageID string) (bool, error)

	// LastShown returns the recorded timestamp for (query, imageID).
	// The second return is false when no record exists.
	LastShown(query, imageID string) (time.Time, bool, error)

	// Record upserts the shown-at timestamp for (query, imageID).
	Record(query, imageID string, shownAt time.Time) error

	// PurgeExpired removes every record older than the retention window
	// relative to now. Running it twice in a row is a no-op the second time.
	PurgeExpired(now time.Time) error

	// Reset removes all records for query regardless of age. This backs the
	// user-facing "fresh" control.
	Reset(query string) error

	// LastPage returns the highest provider page ever fetched for query,
	// or 0 when unknown.
	LastPage(query string) (int, error)

	// SetLastPage records the highest provider page fetched for query.
	SetLastPage(query string, page int) error
}
