package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var ErrSelectorNotFound = errors.New("selector not found")

// Browser opens pages for extraction. Every Navigate call yields an
// independent page that must be closed by the caller.
type Browser interface {
	Navigate(ctx context.Context, url string) (Page, error)
}

// Page is a loaded document.
type Page interface {
	// QueryText returns the rendered text of the first element matching selector.
	QueryText(ctx context.Context, selector string) (string, error)
	// QueryHTML returns the inner markup of the first element matching selector.
	QueryHTML(ctx context.Context, selector string) (string, error)
	// DocumentHTML returns the markup of the whole document.
	DocumentHTML(ctx context.Context) (string, error)
	Close() error
}

// ChromeBrowser drives a headless Chrome. Each navigation launches its own
// browser process, torn down by Page.Close.
type ChromeBrowser struct {
	execPath  string
	timeout   time.Duration
	idleWait  time.Duration
	userAgent string
}

func NewChromeBrowser(execPath string, timeout, idleWait time.Duration) *ChromeBrowser {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if idleWait <= 0 {
		idleWait = 5 * time.Second
	}
	return &ChromeBrowser{
		execPath:  execPath,
		timeout:   timeout,
		idleWait:  idleWait,
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.UserAgent(b.userAgent),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	runCtx, cancelRun := context.WithTimeout(tabCtx, b.timeout)

	p := &chromePage{
		ctx: runCtx,
		cancel: func() {
			cancelRun()
			cancelTab()
			cancelAlloc()
		},
	}

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	if err := chromedp.Run(runCtx, page.SetLifecycleEventsEnabled(true), chromedp.Navigate(url)); err != nil {
		p.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	select {
	case <-idle:
	case <-time.After(b.idleWait):
	case <-runCtx.Done():
		p.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, runCtx.Err())
	}
	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel func()
}

func (p *chromePage) exists(selector string) error {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	var found bool
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(fmt.Sprintf("document.querySelector(%s) !== null", quoted), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
	}
	return nil
}

func (p *chromePage) QueryText(_ context.Context, selector string) (string, error) {
	if err := p.exists(selector); err != nil {
		return "", err
	}
	var text string
	err := chromedp.Run(p.ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	return text, err
}

func (p *chromePage) QueryHTML(_ context.Context, selector string) (string, error) {
	if err := p.exists(selector); err != nil {
		return "", err
	}
	var html string
	err := chromedp.Run(p.ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.InnerHTML(selector, &html, chromedp.ByQuery),
	)
	return html, err
}

func (p *chromePage) DocumentHTML(_ context.Context) (string, error) {
	var html string
	err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// StaticBrowser fetches pages over plain HTTP without running scripts.
type StaticBrowser struct {
	client    *http.Client
	userAgent string
}

func NewStaticBrowser(client *http.Client) *StaticBrowser {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &StaticBrowser{
		client:    client,
		userAgent: "inkpost/1.0 (+https://github.com/deusflow/inkpost)",
	}
}

func (b *StaticBrowser) Navigate(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("load %s: HTTP %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return &staticPage{doc: doc}, nil
}

type staticPage struct {
	doc *goquery.Document
}

func (p *staticPage) find(selector string) (*goquery.Selection, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
	}
	return sel, nil
}

func (p *staticPage) QueryText(_ context.Context, selector string) (string, error) {
	sel, err := p.find(selector)
	if err != nil {
		return "", err
	}
	html, err := sel.Html()
	if err != nil {
		return "", err
	}
	return ToText(html), nil
}

func (p *staticPage) QueryHTML(_ context.Context, selector string) (string, error) {
	sel, err := p.find(selector)
	if err != nil {
		return "", err
	}
	return sel.Html()
}

func (p *staticPage) DocumentHTML(_ context.Context) (string, error) {
	html, err := goquery.OuterHtml(p.doc.Selection.Find("html"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(html), nil
}

func (p *staticPage) Close() error { return nil }
