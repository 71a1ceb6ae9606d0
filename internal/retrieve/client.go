package retrieve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/papergrab/internal/model"
	"golang.org/x/net/proxy"
)

// maxRedirects bounds the redirect chain of a download.
const maxRedirects = 10

// defaultHeaders are sent with every download request.
var defaultHeaders = map[string]string{
	"Accept":          "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-GB,en;q=0.9",
}

// Client creates HTTP clients for downloads, optionally through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" form, or "".
	proxyAddress string

	// dialer is nil when no proxy is configured.
	dialer proxy.Dialer

	// timeout bounds a whole request including the body.
	timeout time.Duration
}

// NewClient creates a Client. An empty proxyAddress connects directly.
//
// The proxy address is validated but not contacted.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	c := &Client{
		proxyAddress: proxyAddress,
		timeout:      timeout,
	}
	if proxyAddress == "" {
		return c, nil
	}

	if !isValidProxyAddress(proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
	}
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// HTTPClient returns an http.Client that adds the default headers to every
// request, redirects included, and the browser session carried by the
// request context (see WithSession).
func (c *Client) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8
	transport.IdleConnTimeout = 30 * time.Second
	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
	}

	return &http.Client{
		Transport: NewSessionTransport(&headerInjectingTransport{
			base:    transport,
			headers: defaultHeaders,
		}),
		Timeout: c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialContext dials through the proxy, honouring ctx when the dialer
// supports it.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d, ok := c.dialer.(proxy.ContextDialer); ok {
		return d.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// headerInjectingTransport sets fixed headers on every request that does not
// already carry them.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying session. Requests made with it
// through a SessionTransport present the session's user agent and cookies.
func WithSession(ctx context.Context, session *model.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

func sessionFrom(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionKey{}).(*model.Session)
	return s
}

// SessionTransport sets the user agent of the request's session and the
// session cookies valid for the request host. Each redirect hop is matched
// against its own host.
type SessionTransport struct {
	base http.RoundTripper
}

// NewSessionTransport wraps base. A nil base means http.DefaultTransport.
func NewSessionTransport(base http.RoundTripper) *SessionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &SessionTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *SessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	session := sessionFrom(req.Context())
	if session == nil {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if session.UserAgent != "" {
		clone.Header.Set("User-Agent", session.UserAgent)
	}
	clone.Header.Del("Cookie")
	if cookie := session.CookieHeaderFor(clone.URL.Hostname()); cookie != "" {
		clone.Header.Set("Cookie", cookie)
	}
	return t.base.RoundTrip(clone)
}

// withSessionTransport returns d with a SessionTransport installed when d
// is an *http.Client without one. Other Doers must install it themselves.
func withSessionTransport(d Doer) Doer {
	hc, ok := d.(*http.Client)
	if !ok || hc == nil {
		return d
	}
	if _, ok := hc.Transport.(*SessionTransport); ok {
		return hc
	}
	clone := *hc
	clone.Transport = NewSessionTransport(hc.Transport)
	return &clone
}
