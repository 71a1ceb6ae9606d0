package wizard

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/papergrab/internal/browser"
)

// DefaultClickTimeout bounds each click strategy.
const DefaultClickTimeout = 5 * time.Second

// clickStrategy is one way of clicking an element.
type clickStrategy struct {
	name string
	do   func(ctx context.Context, b browser.Browser, el browser.Element) error
}

// clickStrategies are tried in this order.
var clickStrategies = []clickStrategy{
	{
		name: "native",
		do: func(ctx context.Context, b browser.Browser, el browser.Element) error {
			if err := b.ScrollIntoView(ctx, el); err != nil {
				return err
			}
			return b.NativeClick(ctx, el)
		},
	},
	{
		name: "script",
		do: func(ctx context.Context, b browser.Browser, el browser.Element) error {
			return b.ScriptClick(ctx, el)
		},
	},
	{
		name: "pointer",
		do: func(ctx context.Context, b browser.Browser, el browser.Element) error {
			return b.PointerClick(ctx, el)
		},
	},
}

// Clicker clicks elements through a fixed fallback chain of strategies.
type Clicker struct {
	browser browser.Browser
	timeout time.Duration
	logger  *slog.Logger
}

// ClickerOption configures a Clicker.
type ClickerOption func(*Clicker)

// WithClickTimeout sets the per-strategy timeout.
func WithClickTimeout(d time.Duration) ClickerOption {
	return func(c *Clicker) {
		c.timeout = d
	}
}

// WithClickerLogger sets the logger.
func WithClickerLogger(logger *slog.Logger) ClickerOption {
	return func(c *Clicker) {
		c.logger = logger
	}
}

// NewClicker creates a Clicker for b.
func NewClicker(b browser.Browser, opts ...ClickerOption) *Clicker {
	c := &Clicker{
		browser: b,
		timeout: DefaultClickTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttemptClick tries each strategy in order, each under its own timeout,
// and reports whether one of them succeeded. A total failure is logged and
// returned as false; the caller decides whether the step was essential.
func (c *Clicker) AttemptClick(ctx context.Context, el browser.Element) bool {
	for _, s := range clickStrategies {
		if ctx.Err() != nil {
			return false
		}

		strategyCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := s.do(strategyCtx, c.browser, el)
		cancel()

		if err == nil {
			c.logger.Debug("click succeeded", "strategy", s.name, "element", el.Text())
			return true
		}
		c.logger.Debug("click strategy failed", "strategy", s.name, "element", el.Text(), "error", err)
	}

	c.logger.Warn("all click strategies failed", "element", el.Text())
	return false
}
