// Package fetch provides the outbound HTTP client used by every tool that
// touches the public web. Requests carry an ordinary browser profile because
// several government statute portals serve reduced or blocked content to
// obvious bot user agents.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/complyhq/regscout/internal/urlguard"
)

// DefaultTimeout bounds ordinary page fetches. PDFTimeout is longer because
// statute PDFs from official portals are routinely tens of megabytes.
const (
	DefaultTimeout = 30 * time.Second
	PDFTimeout     = 60 * time.Second
)

// userAgents is a small rotation of current desktop browser strings.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Client wraps http.Client with a browser-like header profile, bounded retry
// on transient errors, a redirect cap, and an optional concurrency limiter.
type Client struct {
	HTTPClient *http.Client
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the response body read. Zero means default (20 MiB).
	MaxBodyBytes int64
	// SkipGuard disables the outbound URL guard. Only tests set this.
	SkipGuard bool

	// internal limiter initialized on first use when MaxConcurrent > 0
	limiter     chan struct{}
	limiterOnce sync.Once
}

const defaultMaxBodyBytes = 20 << 20

// Result is a fetched response body with the metadata callers need.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
	StatusCode  int
}

// Get issues a GET with a browser header profile and bounded retry for
// transient errors. The URL is vetted by the guard before any connection is
// attempted.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	return c.GetWithTimeout(ctx, rawURL, c.Timeout)
}

// GetWithTimeout is Get with a per-call timeout override. Non-positive
// timeout falls back to the client default.
func (c *Client) GetWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	if !c.SkipGuard {
		if err := urlguard.Check(rawURL); err != nil {
			return nil, fmt.Errorf("unsafe url: %w", err)
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := c.tryOnce(ctx, rawURL, timeout)
		if err == nil {
			return res, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	c.acquire()
	defer c.release()

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	maxBytes := c.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
	}, nil
}

// setBrowserHeaders applies the rotating user agent and the accompanying
// header profile. Accept-Encoding is left to the transport so gzip bodies are
// decompressed automatically.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7,ja;q=0.6")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

// checkRedirectFunc caps hops and re-vets every redirect target, so a vetted
// public URL cannot bounce the client into a private address.
func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	maxHops := c.RedirectMaxHops
	if maxHops <= 0 {
		maxHops = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("stopped after %d redirects", maxHops)
		}
		if !c.SkipGuard {
			if err := urlguard.Check(req.URL.String()); err != nil {
				return fmt.Errorf("redirect to unsafe url: %w", err)
			}
		}
		return nil
	}
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "server error:")
}

// IsPDFContentType reports whether a Content-Type header denotes a PDF body.
func IsPDFContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/pdf" || ct == "application/x-pdf"
}
