package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"rental-pipeline/utils"
)

// BrowserSource renders search pages in headless Chrome before parsing
// them, for when plain HTTP requests are blocked.
type BrowserSource struct {
	chromeBin string
	timeout   time.Duration
	settle    time.Duration
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

// NewBrowserSource creates a source driving the given Chrome binary, or the
// first one found on the system when chromeBin is empty.
func NewBrowserSource(chromeBin string, maxRetries int, logger *utils.Logger) *BrowserSource {
	logger = logger.With("browser")
	return &BrowserSource{
		chromeBin: chromeBin,
		timeout:   90 * time.Second,
		settle:    3 * time.Second,
		retry: &utils.RetryConfig{
			MaxRetries: maxRetries,
			Logger:     logger,
		},
		logger: logger,
	}
}

// Results starts a browser and pages through the results of q. The browser
// is shut down once the iterator is exhausted or closed.
func (b *BrowserSource) Results(ctx context.Context, q Query) (ResultIterator, error) {
	chromeBin := b.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	b.logger.Info("Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &pageIterator{
		load: func(ctx context.Context, offset int) ([]rowResult, error) {
			return b.renderPage(ctx, browserCtx, q, offset)
		},
		onDone: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

func (b *BrowserSource) renderPage(ctx, browserCtx context.Context, q Query, offset int) ([]rowResult, error) {
	pageURL := q.SearchURL(offset)
	var html string

	err := b.retry.Do(ctx, fmt.Sprintf("render-page-%d", offset), func(int) error {
		tabCtx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
		defer cancelTimeout()

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(b.settle),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("chromedp render %s: %w", pageURL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err := parseSearchPage([]byte(html), pageURL, q)
	if err != nil {
		return nil, err
	}
	b.logger.Info("Rendered page at offset %d: %d results", offset, len(rows))
	return rows, nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
