package model

import "strings"

// Cookie is a single browser cookie carried over to the HTTP client.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session is captured once from the browser after the wizard reaches
// its results state and is shared read-only by every download of the
// series. If the server rotates tokens mid-run the affected downloads
// fail; they are not retried with stale cookies.
type Session struct {
	// Cookies are the browser cookies at capture time.
	Cookies []Cookie `json:"cookies"`

	// UserAgent is the browser's user agent string.
	UserAgent string `json:"user_agent"`
}

// CookieHeader renders the cookies as the value of a Cookie request header.
func (s Session) CookieHeader() string {
	return s.cookieHeader(func(Cookie) bool { return true })
}

// CookieHeaderFor renders only the cookies whose domain matches host.
// Cookies without a domain match every host.
func (s Session) CookieHeaderFor(host string) string {
	host = strings.ToLower(host)
	return s.cookieHeader(func(c Cookie) bool {
		domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		return domain == "" || host == domain || strings.HasSuffix(host, "."+domain)
	})
}

func (s Session) cookieHeader(keep func(Cookie) bool) string {
	var sb strings.Builder
	for _, c := range s.Cookies {
		if !keep(c) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(c.Name)
		sb.WriteString("=")
		sb.WriteString(c.Value)
	}
	return sb.String()
}
