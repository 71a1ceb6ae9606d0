package retrieve

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnexpectedContentType is returned when the server answered with a
	// content type that is not a document format.
	ErrUnexpectedContentType = errors.New("unexpected content type")

	// ErrEmptyBody is returned when the server sent no bytes.
	ErrEmptyBody = errors.New("empty response body")
)
