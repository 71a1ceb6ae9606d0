package browser

import (
	"context"
	"errors"

	"github.com/nao1215/papergrab/internal/model"
)

// ErrNotFound is returned by Locate when no visible element matches.
var ErrNotFound = errors.New("no visible element matches selector")

// Element is a located page element.
type Element interface {
	// Text is the element's text content at the time it was located.
	Text() string
}

// Browser is a single browser tab. Implementations are not safe for
// concurrent use; the navigator owns the session exclusively.
type Browser interface {
	// Navigate opens url and waits until the document body is ready.
	Navigate(ctx context.Context, url string) error

	// Locate returns the first visible element matching sel, or ErrNotFound.
	// It does not wait; callers poll.
	Locate(ctx context.Context, sel model.Selector) (Element, error)

	// ScrollIntoView scrolls el into the viewport.
	ScrollIntoView(ctx context.Context, el Element) error

	// NativeClick waits until el is clickable and dispatches a native click.
	NativeClick(ctx context.Context, el Element) error

	// ScriptClick calls the element's click() method from page script.
	ScriptClick(ctx context.Context, el Element) error

	// PointerClick moves the pointer to the element's centre and clicks.
	PointerClick(ctx context.Context, el Element) error

	// CurrentURL returns the location of the page.
	CurrentURL(ctx context.Context) (string, error)

	// Cookies returns the cookies visible to the page.
	Cookies(ctx context.Context) ([]model.Cookie, error)

	// UserAgent returns the browser's user agent string.
	UserAgent(ctx context.Context) (string, error)

	// PageSource returns the serialized DOM.
	PageSource(ctx context.Context) (string, error)

	// ScrollToBottom scrolls to the end of the page so lazy content loads.
	ScrollToBottom(ctx context.Context) error

	// Screenshot writes a full-page PNG to path.
	Screenshot(ctx context.Context, path string) error

	// Close releases the browser.
	Close() error
}

// CaptureSession reads cookies and user agent from b.
func CaptureSession(ctx context.Context, b Browser) (*model.Session, error) {
	cookies, err := b.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	ua, err := b.UserAgent(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Session{Cookies: cookies, UserAgent: ua}, nil
}
