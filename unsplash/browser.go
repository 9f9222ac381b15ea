package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"gosplash/pkg/logger"
)

// Browser searches photos by driving a headless browser against the
// unsplash.com website and intercepting the site's own search API calls.
// It is the fallback provider when no API access key is configured.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	pageSize    int
	maxPage     int
	rateLimiter *rateLimiter
	log         *logger.Logger

	// The browser tab is a single shared resource; one search at a time.
	mu sync.Mutex
}

// capturedPage is one intercepted napi/search/photos response.
type capturedPage struct {
	page int
	body []byte
}

// NewBrowser creates a headless-browser search provider.
func NewBrowser(log *logger.Logger, opts Options) (*Browser, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPage <= 0 {
		opts.MaxPage = DefaultMaxPage
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 5 * time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}

	ua := defaultUserAgents[0]
	if len(opts.UserAgents) > 0 {
		ua = opts.UserAgents[0]
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1920, 1080),
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	return &Browser{
		ctx:         ctx,
		pageSize:    opts.PageSize,
		maxPage:     opts.MaxPage,
		rateLimiter: newRateLimiter(opts.MinDelay, opts.MaxDelay),
		log:         log,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
	}, nil
}

// PageSize returns the number of results per page.
func (b *Browser) PageSize() int { return b.pageSize }

// MaxPage returns the deepest page reachable by scrolling.
func (b *Browser) MaxPage() int { return b.maxPage }

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}

// Search navigates to the query's search page and scrolls until the site has
// loaded the requested result page, which is captured off the wire.
func (b *Browser) Search(ctx context.Context, query string, page int) ([]Image, error) {
	if page < 1 || page > b.maxPage {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, b.maxPage)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("https://unsplash.com/s/photos/%s", url.PathEscape(query))

	pageChan := make(chan capturedPage, 8)
	listenCtx, cancelListener := context.WithCancel(b.ctx)
	defer cancelListener()

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || !strings.Contains(resp.Response.URL, "napi/search/photos") {
			return
		}
		respPage := pageParam(resp.Response.URL)
		if respPage == 0 {
			return
		}
		go func(reqID network.RequestID) {
			body, err := network.GetResponseBody(reqID).Do(cdp.WithExecutor(listenCtx, chromedp.FromContext(listenCtx).Target))
			if err != nil {
				return
			}
			select {
			case pageChan <- capturedPage{page: respPage, body: body}:
			case <-listenCtx.Done():
			}
		}(resp.RequestID)
	})

	var images []Image
	runErr := chromedp.Run(b.ctx,
		network.Enable(),
		chromedp.Navigate(searchURL),
		chromedp.ActionFunc(func(tabCtx context.Context) error {
			b.log.Info("Navigated to search page", "url", searchURL, "wantPage", page)

			var timeouts int
			const maxConsecutiveTimeouts = 3

			for {
				// The site requests page 1 on load and further pages as the
				// viewport approaches the bottom; keep nudging it.
				if page > 1 {
					err := chromedp.Run(tabCtx,
						chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
						chromedp.Sleep(500*time.Millisecond),
					)
					if err != nil {
						return err
					}
				}

				select {
				case captured := <-pageChan:
					timeouts = 0
					if captured.page != page {
						b.log.Debug("Captured a page we did not ask for", "page", captured.page)
						continue
					}
					var sr searchResponse
					if err := json.Unmarshal(captured.body, &sr); err != nil {
						return fmt.Errorf("failed to decode captured response: %w", err)
					}
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
				case <-time.After(10 * time.Second):
					timeouts++
					b.log.Warn("Timeout waiting for search response", "count", timeouts)
					if timeouts >= maxConsecutiveTimeouts {
						return fmt.Errorf("page %d never loaded", page)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}),
	)
	if runErr != nil {
		return nil, fmt.Errorf("failed during browser automation: %w", runErr)
	}

	return images, nil
}

// pageParam extracts the page query parameter from a napi request URL.
func pageParam(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0
	}
	return page
}
