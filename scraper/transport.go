package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// userAgents is rotated across outbound requests so one run doesn't present a
// single fingerprint to every retailer.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
}

// HTTPError is a non-2xx response. 5xx responses are retried, 4xx never are.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.StatusCode, e.URL)
}

// Fetcher executes page fetches with user-agent rotation, a per-call timeout
// and bounded retry with exponential backoff.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration

	mu   sync.Mutex
	next int
}

// NewFetcher builds a Fetcher with the given per-call timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		timeout:     timeout,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
	}
}

// nextUserAgent rotates through the agent list.
func (f *Fetcher) nextUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua := userAgents[f.next%len(userAgents)]
	f.next++
	return ua
}

// Get fetches a URL, retrying timeouts and 5xx responses with exponential
// backoff. 4xx responses and context cancellation fail immediately.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	delay := f.baseDelay

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := f.doOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt < f.maxAttempts {
			log.Printf("fetch %s failed (attempt %d/%d): %v, retrying in %v", url, attempt, f.maxAttempts, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.maxAttempts, lastErr)
}

func (f *Fetcher) doOnce(ctx context.Context, url string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en;q=0.9, *;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	return io.ReadAll(resp.Body)
}

// retryable classifies an error for the retry loop: network timeouts and 5xx
// responses are transient, everything else is permanent.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// decodeCharset converts legacy retailer encodings to UTF-8. An empty or
// unknown charset passes the body through unchanged.
func decodeCharset(body []byte, charset string) ([]byte, error) {
	var cm *charmap.Charmap
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return body, nil
	case "iso-8859-1", "latin-1":
		cm = charmap.ISO8859_1
	case "windows-1251":
		cm = charmap.Windows1251
	case "windows-1252":
		cm = charmap.Windows1252
	default:
		return body, nil
	}

	decoded, _, err := transform.Bytes(cm.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", charset, err)
	}
	return decoded, nil
}
