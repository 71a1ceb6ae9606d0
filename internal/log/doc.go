// Package log provides structured logging for papergrab on top of log/slog.
//
// The SecureHandler wraps any slog.Handler and masks values that would leak
// the captured browser session: cookies, Set-Cookie headers, authorization
// headers, session identifiers and token-shaped strings. Masking applies in
// verbose mode too, so debug logs can be shared when reporting portal changes.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("session captured",
//	    "cookies", session.CookieHeader(), // logged as ***REDACTED***
//	    "user_agent", session.UserAgent,
//	)
package log
