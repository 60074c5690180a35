package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chai2010/webp"
)

// ErrFetchBudget is returned when every attempt of a fetch failed.
var ErrFetchBudget = errors.New("image fetch budget exhausted")

const maxImageBytes = 8 << 20

// Fetcher loads images with a fixed number of attempts and a fixed delay
// between them. Budget, when set, caps the whole fetch.
type Fetcher struct {
	Client   *http.Client
	Attempts int
	Delay    time.Duration
	Budget   time.Duration
}

// NewFetcher returns a fetcher with the default budget: 10 attempts 100ms
// apart, 300ms per attempt and 2s overall.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: 300 * time.Millisecond},
		Attempts: 10,
		Delay:    100 * time.Millisecond,
		Budget:   2 * time.Second,
	}
}

// Fetch downloads and decodes the image at url. On budget exhaustion the
// error wraps both ErrFetchBudget and the last failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	parent := ctx
	if f.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Budget)
		defer cancel()
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(f.Delay):
			}
		}
		if ctx.Err() != nil {
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			break
		}
		img, err := f.fetchOnce(ctx, client, url)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: %w: %w", url, ErrFetchBudget, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	return Decode(data, resp.Header.Get("Content-Type"), url)
}

// Decode decodes png, jpeg, gif or webp image data. WebP is detected from
// the content type, the name suffix or the RIFF header.
func Decode(data []byte, contentType, name string) (image.Image, error) {
	if isWebP(data, contentType, name) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func isWebP(data []byte, contentType, name string) bool {
	if strings.HasPrefix(contentType, "image/webp") || strings.HasSuffix(strings.ToLower(name), ".webp") {
		return true
	}
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
