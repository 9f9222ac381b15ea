package variety

import (
	"testing"
	"time"
)

func TestSeed_StableWithinHourBucket(t *testing.T) {
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, time.Second, 17 * time.Minute, 59*time.Minute + 59*time.Second} {
		a := Seed("mountain", base)
		b := Seed("mountain", base.Add(offset))
		if a != b {
			t.Fatalf("seed changed within the hour: offset=%v %d != %d", offset, a, b)
		}
	}
}

func TestSeed_DiffersByQuery(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	if Seed("mountain", now) == Seed("ocean", now) {
		t.Fatal("distinct queries produced the same seed")
	}
}

func TestSeed_VariesAcrossHourBuckets(t *testing.T) {
	// Statistical, not absolute: a handful of collisions over 200 hours
	// would still pass, identical output would not.
	base := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	seen := make(map[uint64]struct{})
	const hours = 200
	for i := 0; i < hours; i++ {
		seen[Seed("mountain", base.Add(time.Duration(i)*time.Hour))] = struct{}{}
	}
	if len(seen) < hours*9/10 {
		t.Fatalf("only %d distinct seeds over %d hour buckets", len(seen), hours)
	}
}
