// Package browsertest provides an in-memory browser.Browser for tests.
//
// A Fake holds a set of elements keyed by compiled query. Tests script the
// wizard by attaching OnClick callbacks that add the elements the next step
// expects, the way the real page reveals its next section.
package browsertest

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/nao1215/papergrab/internal/browser"
	"github.com/nao1215/papergrab/internal/model"
)

// Element is a fake page element.
type Element struct {
	// Label is returned by Text.
	Label string

	// Hidden elements exist but are never located.
	Hidden bool

	// Errors returned by the respective click strategies.
	FailNative  error
	FailScript  error
	FailPointer error

	// OnClick runs after a successful click of any strategy.
	OnClick func(f *Fake)
}

// Text implements browser.Element.
func (e *Element) Text() string { return e.Label }

// Fake is an in-memory browser.
type Fake struct {
	mu          sync.Mutex
	elements    map[string]*Element
	url         string
	source      string
	cookies     []model.Cookie
	userAgent   string
	navigations []string
	clicks      []string
	screenshots []string
	closed      bool

	// NavigateErr is returned by every Navigate call when set.
	NavigateErr error

	// OnNavigate runs after each successful Navigate. Use it to lay out the
	// initial page.
	OnNavigate func(f *Fake, url string)
}

var _ browser.Browser = (*Fake)(nil)

// New returns an empty fake browser.
func New() *Fake {
	return &Fake{
		elements:  make(map[string]*Element),
		userAgent: "Mozilla/5.0 (browsertest)",
	}
}

// Add places el on the page under sel.
func (f *Fake) Add(sel model.Selector, el *Element) {
	q, err := browser.Compile(sel)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[q.Expr] = el
}

// Remove takes the element under sel off the page.
func (f *Fake) Remove(sel model.Selector) {
	q, err := browser.Compile(sel)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, q.Expr)
}

// Clear removes every element.
func (f *Fake) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements = make(map[string]*Element)
}

// SetURL sets the current location.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// SetSource sets the page source.
func (f *Fake) SetSource(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
}

// SetCookies sets the cookies returned by Cookies.
func (f *Fake) SetCookies(cookies ...model.Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append([]model.Cookie(nil), cookies...)
}

// Clicks returns the labels of clicked elements, in order.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// Navigations returns every URL passed to Navigate.
func (f *Fake) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigations...)
}

// Screenshots returns the paths of taken screenshots.
func (f *Fake) Screenshots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.screenshots...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Navigate implements browser.Browser.
func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.navigations = append(f.navigations, url)
	if f.NavigateErr != nil {
		err := f.NavigateErr
		f.mu.Unlock()
		return err
	}
	f.url = url
	hook := f.OnNavigate
	f.mu.Unlock()

	if hook != nil {
		hook(f, url)
	}
	return nil
}

// Locate implements browser.Browser.
func (f *Fake) Locate(ctx context.Context, sel model.Selector) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := browser.Compile(sel)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[q.Expr]
	if !ok || el.Hidden {
		return nil, browser.ErrNotFound
	}
	return el, nil
}

// ScrollIntoView implements browser.Browser.
func (f *Fake) ScrollIntoView(ctx context.Context, _ browser.Element) error {
	return ctx.Err()
}

// NativeClick implements browser.Browser.
func (f *Fake) NativeClick(ctx context.Context, el browser.Element) error {
	return f.click(ctx, el, func(e *Element) error { return e.FailNative })
}

// ScriptClick implements browser.Browser.
func (f *Fake) ScriptClick(ctx context.Context, el browser.Element) error {
	return f.click(ctx, el, func(e *Element) error { return e.FailScript })
}

// PointerClick implements browser.Browser.
func (f *Fake) PointerClick(ctx context.Context, el browser.Element) error {
	return f.click(ctx, el, func(e *Element) error { return e.FailPointer })
}

func (f *Fake) click(ctx context.Context, el browser.Element, failure func(*Element) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := el.(*Element)
	if !ok {
		return errors.New("foreign element")
	}
	if err := failure(e); err != nil {
		return err
	}
	f.mu.Lock()
	f.clicks = append(f.clicks, e.Label)
	f.mu.Unlock()
	if e.OnClick != nil {
		e.OnClick(f)
	}
	return nil
}

// CurrentURL implements browser.Browser.
func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

// Cookies implements browser.Browser.
func (f *Fake) Cookies(ctx context.Context) ([]model.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Cookie(nil), f.cookies...), nil
}

// UserAgent implements browser.Browser.
func (f *Fake) UserAgent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userAgent, nil
}

// PageSource implements browser.Browser.
func (f *Fake) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source, nil
}

// ScrollToBottom implements browser.Browser.
func (f *Fake) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

// Screenshot implements browser.Browser. It writes a placeholder file.
func (f *Fake) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.screenshots = append(f.screenshots, path)
	f.mu.Unlock()
	return os.WriteFile(path, []byte("PNG"), 0o600)
}

// Close implements browser.Browser.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
