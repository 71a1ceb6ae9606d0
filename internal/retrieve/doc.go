// Package retrieve downloads paired documents into the target layout.
//
// The Engine turns every document of every bundle into a job with a fixed
// target path, skips jobs whose file already exists without touching the
// network, and fetches the rest with a bounded pool of workers. Each body is
// streamed into a temporary file next to its target and renamed into place
// only after a complete copy, so a failed download never leaves a partial
// file behind.
//
// The Client builds the http.Client the engine uses: an optional SOCKS5
// proxy and a transport that adds browser-like headers to every request.
// The browser session's cookies and user agent are attached per request,
// filtered by the cookie domain.
package retrieve
