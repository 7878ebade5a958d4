package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Renderer fetches pages through a headless browser for retailers whose
// product markup only exists after client-side rendering. The browser is
// launched once on first use and shared by every adapter.
type Renderer struct {
	once    sync.Once
	initErr error
	browser *rod.Browser
}

// NewRenderer returns a Renderer; the browser itself launches lazily.
func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) init() {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)

	// Prefer system Chromium when present (container deployments).
	if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
	}

	url, err := l.Launch()
	if err != nil {
		r.initErr = fmt.Errorf("launch browser: %w", err)
		return
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		r.initErr = fmt.Errorf("connect browser: %w", err)
		return
	}

	log.Printf("headless browser ready at %s", url)
	r.browser = browser
}

// HTML loads a URL in the browser and returns the rendered document.
func (r *Renderer) HTML(ctx context.Context, url string) (html string, err error) {
	r.once.Do(r.init)
	if r.initErr != nil {
		return "", r.initErr
	}

	// rod's Must API panics; fold that back into an error return.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render %s: %v", url, rec)
		}
	}()

	page := r.browser.MustPage(url).Context(ctx)
	defer page.MustClose()

	page.MustSetViewport(1920, 1080, 1.0, false)
	page.MustWaitLoad()

	return page.MustHTML(), nil
}

// Close shuts the shared browser down.
func (r *Renderer) Close() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
}
