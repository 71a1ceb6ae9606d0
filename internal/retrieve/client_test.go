package retrieve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/papergrab/internal/model"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"direct", "", false},
		{"ip and port", "127.0.0.1:1080", false},
		{"hostname and port", "localhost:9050", false},
		{"ipv6", "[::1]:1080", false},
		{"no port", "127.0.0.1", true},
		{"empty host", ":1080", true},
		{"port zero", "127.0.0.1:0", true},
		{"port too large", "127.0.0.1:65536", true},
		{"non-numeric port", "127.0.0.1:socks", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(tc.address, time.Second)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidProxyAddress) {
					t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.ProxyAddress() != tc.address {
				t.Errorf("ProxyAddress() = %q, want %q", c.ProxyAddress(), tc.address)
			}
			if (c.dialer != nil) != (tc.address != "") {
				t.Errorf("dialer presence does not match proxy configuration")
			}
		})
	}
}

func TestClient_HTTPClientInjectsHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	hc := c.HTTPClient()
	if hc.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", hc.Timeout)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Language", "de")
	req.Header.Set("User-Agent", "browser")

	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()

	got := <-headers
	accept, language, agent := got.Get("Accept"), got.Get("Accept-Language"), got.Get("User-Agent")
	if accept != defaultHeaders["Accept"] {
		t.Errorf("expected default Accept header, got %q", accept)
	}
	if language != "de" {
		t.Errorf("request header must win over default, got %q", language)
	}
	if agent != "browser" {
		t.Errorf("expected user agent to pass through, got %q", agent)
	}
	if req.Header.Get("Accept") != "" {
		t.Error("original request must not be modified")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSessionTransport(t *testing.T) {
	t.Parallel()

	var got []*http.Request
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = append(got, req)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})
	session := &model.Session{
		UserAgent: "Mozilla/5.0 (papergrab test)",
		Cookies: []model.Cookie{
			{Name: "JSESSIONID", Value: "abc", Domain: "qualifications.example.com"},
			{Name: "cdn", Value: "x", Domain: ".cdn.example.com"},
		},
	}
	rt := NewSessionTransport(base)

	send := func(ctx context.Context, url string) *http.Request {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Cookie", "stale=1")
		resp, err := rt.RoundTrip(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = resp.Body.Close()
		return req
	}

	ctx := WithSession(t.Context(), session)
	orig := send(ctx, "https://qualifications.example.com/a.pdf")
	send(ctx, "https://files.cdn.example.com/a.pdf")
	send(t.Context(), "https://qualifications.example.com/b.pdf")

	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if c := got[0].Header.Get("Cookie"); c != "JSESSIONID=abc" {
		t.Errorf("expected portal cookie, got %q", c)
	}
	if ua := got[0].Header.Get("User-Agent"); ua != session.UserAgent {
		t.Errorf("expected session user agent, got %q", ua)
	}
	if c := got[1].Header.Get("Cookie"); c != "cdn=x" {
		t.Errorf("expected cookies of the redirect host only, got %q", c)
	}
	if c := got[2].Header.Get("Cookie"); c != "stale=1" {
		t.Errorf("request without a session must pass through, got %q", c)
	}
	if orig.Header.Get("Cookie") != "stale=1" {
		t.Error("original request must not be modified")
	}
}

func TestNewEngineInstallsSessionTransport(t *testing.T) {
	t.Parallel()

	e := NewEngine(http.DefaultClient, t.TempDir())
	hc, ok := e.doer.(*http.Client)
	if !ok {
		t.Fatalf("expected *http.Client, got %T", e.doer)
	}
	if _, ok := hc.Transport.(*SessionTransport); !ok {
		t.Errorf("expected SessionTransport, got %T", hc.Transport)
	}
	if http.DefaultClient.Transport != nil {
		t.Error("the shared default client must not be modified")
	}

	c, err := NewClient("", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	own := c.HTTPClient()
	if e := NewEngine(own, t.TempDir()); e.doer != own {
		t.Error("a client that already carries the transport must be used as is")
	}
}
