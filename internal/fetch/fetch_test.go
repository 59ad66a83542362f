package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGet_SetsBrowserProfile(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := &Client{SkipGuard: true}
	res, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Fatalf("user agent not browser-like: %q", gotUA)
	}
	if !strings.Contains(gotAccept, "zh-TW") {
		t.Fatalf("accept-language missing zh-TW: %q", gotAccept)
	}
	if !strings.Contains(string(res.Body), "ok") {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestGet_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, SkipGuard: true}
	res, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get after retries: %v", err)
	}
	if string(res.Body) != "recovered" {
		t.Fatalf("body = %q", res.Body)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3, SkipGuard: true}
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1 (4xx must not retry)", n)
	}
}

func TestGet_GuardBlocksUnsafeTargets(t *testing.T) {
	c := &Client{}
	if _, err := c.Get(context.Background(), "http://127.0.0.1:9/"); err == nil {
		t.Fatal("expected loopback target to be rejected before dialing")
	}
	if _, err := c.Get(context.Background(), "ftp://example.com/"); err == nil {
		t.Fatal("expected non-http scheme to be rejected")
	}
}

func TestGet_RedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	c := &Client{RedirectMaxHops: 3, SkipGuard: true}
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected redirect loop to be cut off")
	}
}

func TestGet_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	defer srv.Close()

	c := &Client{MaxBodyBytes: 100, SkipGuard: true}
	res, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(res.Body) != 100 {
		t.Fatalf("body length = %d, want capped at 100", len(res.Body))
	}
}

func TestIsPDFContentType(t *testing.T) {
	cases := map[string]bool{
		"application/pdf":                true,
		"application/pdf; charset=utf-8": true,
		"Application/PDF":                true,
		"application/x-pdf":              true,
		"text/html":                      false,
		"":                               false,
	}
	for ct, want := range cases {
		if got := IsPDFContentType(ct); got != want {
			t.Fatalf("IsPDFContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
