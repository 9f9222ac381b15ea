// Package unsplash provides search access to the Unsplash photo catalog,
// either through the official REST API or through a headless-browser
// fallback when no API access key is available.
package unsplash

import "errors"

const (
	// DefaultPageSize is the number of results requested per page.
	DefaultPageSize = 10

	// DefaultMaxPage is the deepest page the free API tier will serve.
	DefaultMaxPage = 100
)

// ErrRateLimited is returned when Unsplash rejects a request because the
// hourly request quota is exhausted.
var ErrRateLimited = errors.New("unsplash: rate limited")

// Image is a single search result.
type Image struct {
	ID          string
	URL         string
	Description string
}
