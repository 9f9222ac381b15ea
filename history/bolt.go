package history

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketQueries = []byte("queries")
	bucketPages   = []byte("pages")
)

// DB is a bbolt-backed Store. Each query gets its own nested bucket under
// "queries", keyed by image id with the shown-at time as a big-endian
// unix-nano value. bbolt serializes writers, so Record and PurgeExpired are
// atomic per key without extra locking.
type DB struct {
	db        *bbolt.DB
	retention time.Duration
	now       func() time.Time
}

// Open opens a database file at the given path.
func Open(path string, retention time.Duration) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketQueries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &DB{db: db, retention: retention, now: time.Now}, nil
}

// SetClock replaces the time source used for expiry checks. Tests use this
// to cross the retention boundary without waiting.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Has checks if an image was shown for a query within the retention window.
func (d *DB) Has(query, imageID string) (bool, error) {
	shownAt, ok, err := d.LastShown(query, imageID)
	if err != nil || !ok {
		return false, err
	}
	return d.now().Sub(shownAt) < d.retention, nil
}

// LastShown returns the recorded shown-at time for (query, imageID).
func (d *DB) LastShown(query, imageID string) (time.Time, bool, error) {
	var shownAt time.Time
	var found bool
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQueries).Bucket([]byte(query))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(imageID))
		if v == nil {
			return nil
		}
		shownAt = decodeTime(v)
		found = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read record: %w", err)
	}
	return shownAt, found, nil
}

// Record marks an image as shown for a query at the given time.
func (d *DB) Record(query, imageID string, shownAt time.Time) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketQueries).CreateBucketIfNotExists([]byte(query))
		if err != nil {
			return fmt.Errorf("failed to create query bucket: %w", err)
		}
		return b.Put([]byte(imageID), encodeTime(shownAt))
	})
}

// PurgeExpired deletes every record whose shown-at time is older than the
// retention window relative to now.
func (d *DB) PurgeExpired(now time.Time) error {
	cutoff := now.Add(-d.retention)
	return d.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketQueries)
		return root.ForEachBucket(func(name []byte) error {
			b := root.Bucket(name)
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if decodeTime(v).Before(cutoff) {
					if err := c.Delete(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// Reset removes every record for a query, regardless of age.
func (d *DB) Reset(query string) error {
	err := d.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketQueries)
		if root.Bucket([]byte(query)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(query))
	})
	if err != nil {
		return fmt.Errorf("failed to reset query: %w", err)
	}
	return nil
}

// LastPage returns the highest provider page fetched for a query.
func (d *DB) LastPage(query string) (int, error) {
	var page int
	err := d.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPages).Get([]byte(query))
		if v != nil {
			page = int(binary.BigEndian.Uint32(v))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read last page: %w", err)
	}
	return page, nil
}

// SetLastPage records the highest provider page fetched for a query.
func (d *DB) SetLastPage(query string, page int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(page))
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPages).Put([]byte(query), buf[:])
	})
}

func encodeTime(t time.Time) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	return buf[:]
}

func decodeTime(v []byte) time.Time {
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v)))
}
