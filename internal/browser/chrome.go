package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// Config holds browser session settings.
type Config struct {
	// ExecPath is an explicit Chrome/Chromium binary path (empty = auto-detect).
	ExecPath string

	// Headless runs the browser without a display.
	Headless bool

	// UserAgent overrides the default browser user agent.
	UserAgent string

	// ViewportWidth and ViewportHeight set the emulated viewport.
	ViewportWidth  int64
	ViewportHeight int64

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration

	// SettleDelay is the fixed wait after document readiness. Result lists
	// are populated by client-side script after load, so extraction without
	// this delay sees empty pages.
	SettleDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.ViewportWidth == 0 {
		c.ViewportWidth = 1366
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = 900
	}
	if c.NavigationTimeout == 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
}

// Chrome implements Session on a headless Chrome driven through chromedp.
type Chrome struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc
	opts        PageOptions
	ready       bool
}

// Compile-time check that Chrome implements Session.
var _ Session = (*Chrome)(nil)

// NewChrome creates an unstarted Chrome session.
func NewChrome(cfg Config, logger zerolog.Logger) *Chrome {
	cfg.applyDefaults()
	return &Chrome{
		cfg:    cfg,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

// Initialize launches the browser process.
func (c *Chrome) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}
	c.teardownLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser and attaches the first page target.
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		allocCancel()
		return fmt.Errorf("%w: launch browser: %v", domain.ErrEnvironment, err)
	}

	c.allocCancel = allocCancel
	c.pageCtx = pageCtx
	c.pageCancel = pageCancel
	c.ready = true
	c.logger.Debug().Msg("browser session started")
	return nil
}

// Setup applies headers, viewport and the resource-filtering policy.
// Uncontrolled resource loading is a primary source of navigation timeouts,
// so everything except document/script/XHR/fetch traffic (and allow-listed
// stylesheet/image hosts) is aborted rather than continued.
func (c *Chrome) Setup(ctx context.Context, opts PageOptions) error {
	c.mu.Lock()
	pageCtx := c.pageCtx
	c.opts = opts
	c.mu.Unlock()

	if pageCtx == nil {
		return domain.ErrSessionLost
	}

	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go c.resolveRequest(pageCtx, paused)
	})

	tasks := chromedp.Tasks{
		network.Enable(),
		fetch.Enable(),
		chromedp.EmulateViewport(c.cfg.ViewportWidth, c.cfg.ViewportHeight),
	}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}

	if err := chromedp.Run(pageCtx, tasks); err != nil {
		return c.classify("setup", "", err)
	}
	return nil
}

// resolveRequest continues or aborts one intercepted request.
func (c *Chrome) resolveRequest(pageCtx context.Context, paused *fetch.EventRequestPaused) {
	execCtx := cdp.WithExecutor(pageCtx, chromedp.FromContext(pageCtx).Target)

	if c.requestAllowed(paused) {
		if err := fetch.ContinueRequest(paused.RequestID).Do(execCtx); err != nil {
			c.logger.Trace().Err(err).Str("url", paused.Request.URL).Msg("continue request")
		}
		return
	}
	if err := fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
		c.logger.Trace().Err(err).Str("url", paused.Request.URL).Msg("abort request")
	}
}

func (c *Chrome) requestAllowed(paused *fetch.EventRequestPaused) bool {
	switch paused.ResourceType {
	case network.ResourceTypeDocument,
		network.ResourceTypeScript,
		network.ResourceTypeXHR,
		network.ResourceTypeFetch:
		return true
	case network.ResourceTypeStylesheet, network.ResourceTypeImage:
		c.mu.Lock()
		hosts := c.opts.AllowedAssetHosts
		c.mu.Unlock()
		if len(hosts) == 0 {
			return false
		}
		u, err := url.Parse(paused.Request.URL)
		if err != nil {
			return false
		}
		for _, host := range hosts {
			if strings.HasSuffix(u.Host, host) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Navigate loads a URL, waits for readiness, then applies the settle delay.
func (c *Chrome) Navigate(ctx context.Context, pageURL string) error {
	pageCtx, err := c.page()
	if err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(pageCtx, c.cfg.NavigationTimeout)
	defer cancel()

	err = chromedp.Run(tctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
	)
	if err != nil {
		return c.classify("navigate", pageURL, err)
	}
	return nil
}

// WaitForSelector blocks until the selector is visible or the timeout elapses.
func (c *Chrome) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	pageCtx, err := c.page()
	if err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(pageCtx, timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.TimeoutError{Op: "wait", Selector: selector}
		}
		return c.classify("wait", selector, err)
	}
	return nil
}

// Extract evaluates the selector map against the DOM.
func (c *Chrome) Extract(ctx context.Context, sel SelectorMap) ([]RawItem, error) {
	pageCtx, err := c.page()
	if err != nil {
		return nil, err
	}

	var items []RawItem
	script := extractScript(sel)
	if err := chromedp.Run(pageCtx, chromedp.Evaluate(script, &items)); err != nil {
		return nil, &domain.ExtractionError{Source: sel.Container, Cause: err}
	}
	return items, nil
}

// EvaluateSelector returns one attribute of the first matching element.
func (c *Chrome) EvaluateSelector(ctx context.Context, selector, attribute string) (string, error) {
	pageCtx, err := c.page()
	if err != nil {
		return "", err
	}

	script := fmt.Sprintf(`(() => {
		const node = document.querySelector(%s);
		if (!node) return "";
		if (%s === "text") return node.textContent.trim();
		return node.getAttribute(%s) || node[%s] || "";
	})()`, jsString(selector), jsString(attribute), jsString(attribute), jsString(attribute))

	var value string
	if err := chromedp.Run(pageCtx, chromedp.Evaluate(script, &value)); err != nil {
		return "", &domain.ExtractionError{Source: selector, Cause: err}
	}
	return value, nil
}

// NextPageURL resolves the pagination link's href.
func (c *Chrome) NextPageURL(ctx context.Context, selector string) (string, error) {
	pageCtx, err := c.page()
	if err != nil {
		return "", err
	}

	script := fmt.Sprintf(`(() => {
		const node = document.querySelector(%s);
		return node && node.href ? node.href : "";
	})()`, jsString(selector))

	var href string
	if err := chromedp.Run(pageCtx, chromedp.Evaluate(script, &href)); err != nil {
		return "", &domain.ExtractionError{Source: selector, Cause: err}
	}
	return href, nil
}

// Alive reports whether the session is still usable.
func (c *Chrome) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready && c.pageCtx != nil && c.pageCtx.Err() == nil
}

// Cleanup releases the page and browser unconditionally.
func (c *Chrome) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Chrome) teardownLocked() {
	if c.pageCancel != nil {
		c.pageCancel()
		c.pageCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.pageCtx = nil
	c.ready = false
}

func (c *Chrome) page() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready || c.pageCtx == nil {
		return nil, domain.ErrSessionLost
	}
	if c.pageCtx.Err() != nil {
		return nil, domain.ErrSessionLost
	}
	return c.pageCtx, nil
}

// classify maps low-level chromedp failures onto the domain taxonomy.
func (c *Chrome) classify(op, subject string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.TimeoutError{Op: op, Selector: subject}
	case errors.Is(err, context.Canceled):
		return domain.ErrSessionLost
	default:
		return &domain.NavigationError{URL: subject, Cause: err}
	}
}

// extractScript builds the page-side extraction function for a selector map.
func extractScript(sel SelectorMap) string {
	return fmt.Sprintf(`(() => {
		const container = %s;
		const selTitle = %s, selLink = %s, selIdent = %s;
		const selSnippet = %s, selAuthors = %s, selDate = %s;
		const text = (el, s) => {
			if (!s) return "";
			const n = el.querySelector(s);
			return n ? n.textContent.trim() : "";
		};
		const href = (el, s) => {
			if (!s) return "";
			const n = el.querySelector(s);
			return n && n.href ? n.href : "";
		};
		const items = [];
		document.querySelectorAll(container).forEach(el => {
			items.push({
				title: text(el, selTitle),
				link: href(el, selLink),
				identifier: text(el, selIdent),
				snippet: text(el, selSnippet),
				authors: text(el, selAuthors),
				date: text(el, selDate),
			});
		});
		return items;
	})()`,
		jsString(sel.Container),
		jsString(sel.Title), jsString(sel.Link), jsString(sel.Identifier),
		jsString(sel.Snippet), jsString(sel.Authors), jsString(sel.Date))
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
