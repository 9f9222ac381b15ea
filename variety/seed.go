package variety

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"strconv"
	"time"
)

// Seed derives a deterministic pick seed from a query and the hour it is
// issued in. Repeating a search within the same hour yields the same seed,
// so results stay stable against caches and rate limits; the next hour
// shuffles the sequence.
func Seed(query string, now time.Time) uint64 {
	h := fnv.New64a()
	io.WriteString(h, query)
	io.WriteString(h, ":")
	io.WriteString(h, strconv.FormatInt(now.Unix()/3600, 10))
	return h.Sum64()
}

// mix folds the seed together with pick counters so deep-search picks spread
// across the whole page range instead of walking it linearly.
func mix(words ...uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, w := range words {
		binary.BigEndian.PutUint64(buf[:], w)
		h.Write(buf[:])
	}
	return h.Sum64()
}
