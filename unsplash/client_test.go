package unsplash

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gosplash/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", logger.New(), Options{
		BaseURL:  srv.URL,
		MinDelay: time.Millisecond,
		MaxDelay: time.Millisecond,
	})
}

func TestClient_SearchDecodesResults(t *testing.T) {
	var gotAuth, gotQuery, gotPage string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		gotPage = r.URL.Query().Get("page")
		fmt.Fprint(w, `{
			"total": 2, "total_pages": 1,
			"results": [
				{"id": "a1", "description": "ridge at dawn", "urls": {"regular": "https://img/a1"}},
				{"id": "b2", "description": "", "alt_description": "snowy peak", "urls": {"regular": "", "small": "https://img/b2"}}
			]
		}`)
	}))

	images, err := c.Search(context.Background(), "mountain", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Client-ID test-key" {
		t.Fatalf("Authorization header: got %q", gotAuth)
	}
	if gotQuery != "mountain" || gotPage != "1" {
		t.Fatalf("request params: query=%q page=%q", gotQuery, gotPage)
	}

	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].ID != "a1" || images[0].URL != "https://img/a1" {
		t.Fatalf("first image: %+v", images[0])
	}
	// Alt description and small URL fill the gaps.
	if images[1].Description != "snowy peak" || images[1].URL != "https://img/b2" {
		t.Fatalf("second image: %+v", images[1])
	}
}

func TestClient_SearchRateLimit(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			_, err := c.Search(context.Background(), "mountain", 1)
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("got %v, want ErrRateLimited", err)
			}
		})
	}
}

func TestClient_SearchPageRange(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("out-of-range page reached the provider")
	}))
	for _, page := range []int{0, -1, 101} {
		if _, err := c.Search(context.Background(), "mountain", page); err == nil {
			t.Fatalf("page %d: expected an error", page)
		}
	}
}

func TestClient_SearchEmptyPage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total": 0, "total_pages": 0, "results": []}`)
	}))
	images, err := c.Search(context.Background(), "qqqqzzzz", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("got %d images, want 0", len(images))
	}
}

func TestClient_SearchCancelled(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Search(ctx, "mountain", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
