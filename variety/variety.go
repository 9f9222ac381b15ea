// Package variety picks a different image for every repeat of the same
// search query within a session. Picks are deterministic for a given query
// and hour, widen across more provider pages as a query wears out, and lean
// on a durable history so images do not come back until they have been out
// of rotation for the retention window.
package variety

import (
	"context"
	"errors"

	"gosplash/unsplash"
)

// SearchProvider is the paginated image search the engine draws from.
type SearchProvider interface {
	// Search returns one ordered page of results. Pages start at 1.
	Search(ctx context.Context, query string, page int) ([]unsplash.Image, error)

	// PageSize is the number of results per full page.
	PageSize() int

	// MaxPage is the deepest page the provider will serve.
	MaxPage() int
}

var (
	// ErrNoResults means the provider returned nothing for the query even on
	// page 1. Terminal for the query until the provider has results.
	ErrNoResults = errors.New("variety: no results for query")

	// ErrProviderUnavailable wraps a failed or timed-out provider call.
	ErrProviderUnavailable = errors.New("variety: search provider unavailable")
)
