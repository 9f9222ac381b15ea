package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gosplash/pkg/logger"
	"gosplash/pkg/reliability"
)

const apiBaseURL = "https://api.unsplash.com"

// Client searches photos through the official Unsplash REST API.
type Client struct {
	accessKey      string
	baseURL        string
	pageSize       int
	maxPage        int
	httpClient     *http.Client
	rateLimiter    *rateLimiter
	circuitBreaker *reliability.CircuitBreaker
	userAgents     []string
	log            *logger.Logger
}

// Options configures a Client. Zero values fall back to provider defaults.
type Options struct {
	PageSize   int
	MaxPage    int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	UserAgents []string
	BaseURL    string
}

// NewClient creates a new Unsplash API client.
func NewClient(accessKey string, log *logger.Logger, opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPage <= 0 {
		opts.MaxPage = DefaultMaxPage
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.BaseURL == "" {
		opts.BaseURL = apiBaseURL
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = defaultUserAgents
	}

	return &Client{
		accessKey:      accessKey,
		baseURL:        opts.BaseURL,
		pageSize:       opts.PageSize,
		maxPage:        opts.MaxPage,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		rateLimiter:    newRateLimiter(opts.MinDelay, opts.MaxDelay),
		circuitBreaker: reliability.NewCircuitBreaker(3, time.Minute),
		userAgents:     opts.UserAgents,
		log:            log,
	}
}

// PageSize returns the number of results per page.
func (c *Client) PageSize() int { return c.pageSize }

// MaxPage returns the deepest page the provider will serve.
func (c *Client) MaxPage() int { return c.maxPage }

// searchResponse is the shape of /search/photos results.
type searchResponse struct {
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Results    []struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
		} `json:"urls"`
	} `json:"results"`
}

// Search fetches one page of results for a query. Rate-limit rejections are
// reported as ErrRateLimited; other failures are returned as-is. The method
// never retries.
func (c *Client) Search(ctx context.Context, query string, page int) ([]Image, error) {
	if page < 1 || page > c.maxPage {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, c.maxPage)
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	var images []Image
	err := c.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/search/photos?query=%s&page=%d&per_page=%d",
			c.baseURL, url.QueryEscape(query), page, c.pageSize)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Client-ID "+c.accessKey)
		req.Header.Set("Accept-Version", "v1")
		req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("search request failed: %w", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusForbidden, http.StatusTooManyRequests:
			c.log.Warn("Unsplash rejected the request", "status", resp.StatusCode, "query", query)
			return ErrRateLimited
		default:
			return fmt.Errorf("bad status: %s", resp.Status)
		}

		var sr searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return fmt.Errorf("failed to decode search response: %w", err)
		}

		images = make([]Image, 0, len(sr.Results))
		for _, r := range sr.Results {
			desc := r.Description
			if desc == "" {
				desc = r.AltDescription
			}
			u := r.URLs.Regular
			if u == "" {
				u = r.URLs.Small
			}
			images = append(images, Image{ID: r.ID, URL: u, Description: desc})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("Fetched search page", "query", query, "page", page, "results", len(images))
	return images, nil
}

// rateLimiter enforces a jittered delay between requests.
type rateLimiter struct {
	lastRequest time.Time
	minDelay    time.Duration
	maxDelay    time.Duration
	mu          sync.Mutex
}

func newRateLimiter(minDelay, maxDelay time.Duration) *rateLimiter {
	return &rateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastRequest)
	if elapsed < r.minDelay {
		jitter := time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay) + 1))
		select {
		case <-time.After(r.minDelay - elapsed + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.lastRequest = time.Now()
	return nil
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36",
}
