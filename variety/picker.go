package variety

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gosplash/history"
	"gosplash/pkg/logger"
	"gosplash/unsplash"
)

// Picker resolves one candidate image for a query under a given strategy.
// It never retries provider failures and never records anything; the
// session controller owns state advancement.
type Picker struct {
	provider SearchProvider
	history  history.Store
	policy   Policy
	log      *logger.Logger
}

// NewPicker creates a Picker.
func NewPicker(provider SearchProvider, store history.Store, policy Policy, log *logger.Logger) *Picker {
	return &Picker{
		provider: provider,
		history:  store,
		policy:   policy,
		log:      log,
	}
}

// Candidate is the outcome of one candidate resolution.
type Candidate struct {
	Image unsplash.Image
	Page  int
	Index int
}

// Pick chooses the next image for a query. In the common case it costs one
// provider call; probing stays on the fetched page, and only the
// least-recently-shown fallback rereads pages already fetched during this
// pick.
func (p *Picker) Pick(ctx context.Context, query string, strategy Strategy, seed uint64, shownCount int) (Candidate, error) {
	pageSize := p.provider.PageSize()
	window := p.policy.window(strategy)
	if max := p.provider.MaxPage(); window > max {
		window = max
	}

	// Pages fetched during this pick, so the fallback pass is free.
	fetched := make(map[int][]unsplash.Image)
	fetch := func(page int) ([]unsplash.Image, error) {
		if images, ok := fetched[page]; ok {
			return images, nil
		}
		images, err := p.provider.Search(ctx, query, page)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		fetched[page] = images
		return images, nil
	}

	var page, index int
	if strategy == StrategyDeepSearch {
		page = 1 + int(mix(seed, uint64(shownCount))%uint64(window))
		index = int(mix(seed, uint64(shownCount), uint64(page)) % uint64(pageSize))
	} else {
		linear := seed + uint64(shownCount)
		page = 1 + int((linear/uint64(pageSize))%uint64(window))
		index = int(linear % uint64(pageSize))
	}

	results, err := fetch(page)
	if err != nil {
		return Candidate{}, err
	}
	if len(results) == 0 {
		if page == 1 {
			return Candidate{}, ErrNoResults
		}
		// The result set ends before this page; fold back onto page 1.
		page = 1
		if results, err = fetch(page); err != nil {
			return Candidate{}, err
		}
		if len(results) == 0 {
			return Candidate{}, ErrNoResults
		}
	}
	if index >= len(results) {
		index %= len(results)
	}

	seen, err := p.seen(query, results[index].ID)
	if err == nil && !seen {
		return Candidate{Image: results[index], Page: page, Index: index}, nil
	}

	// Already shown (or history unreadable): linear probe on this page.
	for attempt := 0; attempt < p.policy.ProbeAttempts; attempt++ {
		index = (index + p.policy.ProbeStride) % len(results)
		seen, err := p.seen(query, results[index].ID)
		if err == nil && !seen {
			return Candidate{Image: results[index], Page: page, Index: index}, nil
		}
	}

	return p.leastRecentlyShown(query, fetched)
}

// seen reports whether an unexpired history record exists. Read failures are
// logged and treated as "seen" so probing keeps looking for a clean answer.
func (p *Picker) seen(query, imageID string) (bool, error) {
	seen, err := p.history.Has(query, imageID)
	if err != nil {
		p.log.Warn("History read failed during probe", "query", query, "error", err)
		return true, err
	}
	return seen, nil
}

// leastRecentlyShown scans every candidate fetched during this pick and
// returns the one with the oldest shown-at record, never-shown candidates
// first. Pages are walked in order so the fallback is deterministic.
func (p *Picker) leastRecentlyShown(query string, fetched map[int][]unsplash.Image) (Candidate, error) {
	pages := make([]int, 0, len(fetched))
	for page := range fetched {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	var (
		best      Candidate
		bestShown time.Time
		found     bool
	)
	for _, page := range pages {
		for index, img := range fetched[page] {
			shownAt, ok, err := p.history.LastShown(query, img.ID)
			if err != nil {
				// Stale-but-safe: an unreadable record counts as never shown,
				// failing to produce any candidate would be worse.
				p.log.Warn("History read failed during fallback", "query", query, "error", err)
				ok = false
			}
			if !ok {
				shownAt = time.Time{}
			}
			if !found || shownAt.Before(bestShown) {
				best = Candidate{Image: img, Page: page, Index: index}
				bestShown = shownAt
				found = true
			}
		}
	}
	if !found {
		return Candidate{}, ErrNoResults
	}
	p.log.Debug("Fell back to least-recently-shown candidate",
		"query", query, "image", best.Image.ID, "lastShown", bestShown)
	return best, nil
}
