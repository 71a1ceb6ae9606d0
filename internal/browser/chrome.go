package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/nao1215/papergrab/internal/model"
)

// Options configures NewChrome.
type Options struct {
	// Headless runs Chrome without a window.
	Headless bool

	// ExecPath is the browser executable. Empty lets chromedp find one.
	ExecPath string

	// WindowWidth and WindowHeight size the viewport. The wizard hides
	// parts of its grid on narrow screens.
	WindowWidth  int
	WindowHeight int

	// Logger receives chromedp diagnostics at debug level.
	Logger *slog.Logger
}

// DefaultOptions returns headless options with a desktop-sized window.
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		WindowWidth:  1400,
		WindowHeight: 900,
	}
}

// Chrome is a Browser backed by a chromedp tab.
type Chrome struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
	logger      *slog.Logger
}

var _ Browser = (*Chrome)(nil)

// chromeElement is a located DOM node.
type chromeElement struct {
	node *cdp.Node
	text string
}

func (e *chromeElement) Text() string { return e.text }

// NewChrome starts a browser and opens a blank tab.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives ctx's deadline; ctx only bounds startup.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	c := &Chrome{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tab,
		logger:      logger,
	}

	if err := c.run(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return c, nil
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.tab)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate implements Browser.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Locate implements Browser.
func (c *Chrome) Locate(ctx context.Context, sel model.Selector) (Element, error) {
	q, err := Compile(sel)
	if err != nil {
		return nil, err
	}

	by := chromedp.ByQueryAll
	if q.XPath {
		by = chromedp.BySearch
	}

	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(q.Expr, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if !c.visible(ctx, n) {
			continue
		}
		var text string
		if err := c.run(ctx, chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			c.logger.Debug("failed to read element text", "selector", sel.String(), "error", err)
		}
		return &chromeElement{node: n, text: text}, nil
	}
	return nil, ErrNotFound
}

// visible reports whether n has a rendered box.
func (c *Chrome) visible(ctx context.Context, n *cdp.Node) bool {
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		if box.Width == 0 || box.Height == 0 {
			return errors.New("zero-sized box")
		}
		return nil
	}))
	return err == nil
}

func nodeOf(el Element) (*cdp.Node, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce.node == nil {
		return nil, fmt.Errorf("element %T does not belong to this browser", el)
	}
	return ce.node, nil
}

// ScrollIntoView implements Browser.
func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.ScrollIntoView([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

// NativeClick implements Browser. chromedp waits for the node to be
// visible before dispatching the click.
func (c *Chrome) NativeClick(ctx context.Context, el Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.Click([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

// ScriptClick implements Browser.
func (c *Chrome) ScriptClick(ctx context.Context, el Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		_, exception, err := runtime.CallFunctionOn("function() { this.click(); }").
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return fmt.Errorf("script click raised: %s", exception.Text)
		}
		return nil
	}))
}

// PointerClick implements Browser.
func (c *Chrome) PointerClick(ctx context.Context, el Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.MouseClickNode(n))
}

// CurrentURL implements Browser.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Cookies implements Browser.
func (c *Chrome) Cookies(ctx context.Context) ([]model.Cookie, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	out := make([]model.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, model.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	return out, nil
}

// UserAgent implements Browser.
func (c *Chrome) UserAgent(ctx context.Context) (string, error) {
	var ua string
	if err := c.run(ctx, chromedp.Evaluate(`navigator.userAgent`, &ua)); err != nil {
		return "", err
	}
	return ua, nil
}

// PageSource implements Browser.
func (c *Chrome) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// ScrollToBottom implements Browser.
func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	return c.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// Screenshot implements Browser.
func (c *Chrome) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

// Close implements Browser.
func (c *Chrome) Close() error {
	if c.tabCancel != nil {
		c.tabCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
