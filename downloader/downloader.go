// Package downloader fetches a chosen image and renders a small preview for
// the websocket binary frame.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math/rand"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"gosplash/pkg/logger"
)

const previewWidth = 640

// Downloader fetches image bytes over HTTP and thumbnails them.
type Downloader struct {
	httpClient *http.Client
	userAgents []string
	log        *logger.Logger
}

// New creates a Downloader. userAgents must be non-empty.
func New(log *logger.Logger, userAgents []string) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		userAgents: userAgents,
		log:        log,
	}
}

// Fetch downloads the raw image bytes.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgents[rand.Intn(len(d.userAgents))])
	req.Header.Set("Referer", "https://unsplash.com/")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

// Thumbnail decodes the image and re-encodes it as a JPEG no wider than the
// preview width. Images already small enough pass through a plain re-encode.
func (d *Downloader) Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() > previewWidth {
		img = resize.Resize(previewWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview fetches an image and returns its thumbnail bytes.
func (d *Downloader) Preview(ctx context.Context, url string) ([]byte, error) {
	data, err := d.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return d.Thumbnail(data)
}
