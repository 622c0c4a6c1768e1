package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrBrowserClosed is returned by Fetch after Close.
var ErrBrowserClosed = errors.New("browser fetcher is closed")

// BrowserFetcher renders pages in headless Chrome.
//
// Chrome is started lazily on the first Fetch. Every Fetch opens its own
// stealth tab and closes it afterwards, so concurrent fetches never share a
// page and a stuck page can be abandoned on its own.
type BrowserFetcher struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool

	controlURL string
	bin        string
	userAgent  string
	insecure   bool
	timeout    time.Duration
	idle       time.Duration
	headers    HeaderFunc
	logger     *slog.Logger
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserBin uses the Chrome binary at path instead of the launcher's
// default lookup or download.
func WithBrowserBin(path string) BrowserOption {
	return func(f *BrowserFetcher) {
		f.bin = path
	}
}

// WithControlURL connects to an already running Chrome instead of launching
// one. u is a DevTools WebSocket URL or the http://host:port of the
// DevTools endpoint.
func WithControlURL(u string) BrowserOption {
	return func(f *BrowserFetcher) {
		f.controlURL = u
	}
}

// WithBrowserUserAgent overrides the browser's User-Agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(f *BrowserFetcher) {
		f.userAgent = ua
	}
}

// WithBrowserInsecureTLS makes Chrome ignore certificate errors.
func WithBrowserInsecureTLS(insecure bool) BrowserOption {
	return func(f *BrowserFetcher) {
		f.insecure = insecure
	}
}

// WithBrowserTimeout bounds navigation plus the idle wait.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(f *BrowserFetcher) {
		f.timeout = d
	}
}

// WithIdleTime sets how long the network must stay quiet before the page
// counts as rendered.
func WithIdleTime(d time.Duration) BrowserOption {
	return func(f *BrowserFetcher) {
		f.idle = d
	}
}

// WithBrowserHeaders adds per-host headers to every navigation.
func WithBrowserHeaders(fn HeaderFunc) BrowserOption {
	return func(f *BrowserFetcher) {
		f.headers = fn
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(l *slog.Logger) BrowserOption {
	return func(f *BrowserFetcher) {
		f.logger = l
	}
}

// NewBrowserFetcher returns a BrowserFetcher. Chrome is not started until
// the first Fetch.
func NewBrowserFetcher(opts ...BrowserOption) *BrowserFetcher {
	f := &BrowserFetcher{
		timeout: 60 * time.Second,
		idle:    2 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns "browser".
func (f *BrowserFetcher) Name() string { return "browser" }

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrBrowserClosed
	}
	if f.browser != nil {
		return f.browser, nil
	}

	wsURL := f.controlURL
	if wsURL != "" {
		resolved, err := launcher.ResolveURL(wsURL)
		if err != nil {
			return nil, fmt.Errorf("browser: resolve %s: %w", wsURL, err)
		}
		wsURL = resolved
	} else {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		if f.bin != "" {
			l = l.Bin(f.bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		f.launcher = l
		f.logger.Debug("launched headless chrome", "control_url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		f.killLocked()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if f.insecure {
		if err := b.IgnoreCertErrors(true); err != nil {
			_ = b.Close()
			f.killLocked()
			return nil, fmt.Errorf("browser: ignore cert errors: %w", err)
		}
	}
	f.browser = b
	return b, nil
}

// Fetch navigates a fresh tab to rawURL, waits for the network to go idle
// and returns the rendered DOM.
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	b, err := f.connect()
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	tab, err := stealth.Page(b)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("open tab: %w", err)}
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			f.logger.Debug("failed to close tab", "url", rawURL, "error", cerr)
		}
	}()

	pageCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	page := tab.Context(pageCtx).Timeout(f.timeout)

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      f.userAgent,
			AcceptLanguage: "fi,en;q=0.8",
		}); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}
	if f.headers != nil {
		if u, perr := url.Parse(rawURL); perr == nil {
			var dict []string
			for k, v := range f.headers(u.Host) {
				dict = append(dict, k, v)
			}
			if len(dict) > 0 {
				if _, err := page.SetExtraHeaders(dict); err != nil {
					return nil, &FetchError{URL: rawURL, Err: err}
				}
			}
		}
	}

	doc := newDocumentStatus()
	go page.EachEvent(doc.observe)()

	waitIdle := page.WaitRequestIdle(f.idle, nil, nil, nil)
	if err := page.Navigate(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	waitIdle()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	status, contentType, final := doc.get()
	if err := StatusError(rawURL, status); status != 0 && err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: err}
	}
	if final == "" {
		final = rawURL
	}

	return &Response{
		URL:         final,
		StatusCode:  status,
		ContentType: contentType,
		Encoding:    "utf-8",
		Body:        []byte(html),
	}, nil
}

// Close shuts Chrome down. Fetch fails afterwards.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	f.killLocked()
	return err
}

func (f *BrowserFetcher) killLocked() {
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher.Cleanup()
		f.launcher = nil
	}
}

// documentStatus records the response of the first document request of a
// tab. Chrome reports it asynchronously, so access is guarded.
type documentStatus struct {
	mu          sync.Mutex
	status      int
	contentType string
	url         string
}

func newDocumentStatus() *documentStatus {
	return &documentStatus{}
}

func (d *documentStatus) observe(e *proto.NetworkResponseReceived) bool {
	if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = e.Response.Status
	d.contentType = e.Response.MIMEType
	d.url = e.Response.URL
	return true
}

func (d *documentStatus) get() (int, string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.contentType, d.url
}
