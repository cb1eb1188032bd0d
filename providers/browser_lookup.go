package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"cleanistic/config"
	"cleanistic/models"
)

// BrowserLookup renders record pages in headless Chromium before parsing
// them. Use it for record sites that build the page with JavaScript or sit
// behind a consent wall. The browser starts on first use.
type BrowserLookup struct {
	endpoint string
	timeout  float64 // milliseconds

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

var errBlocked = errors.New("record page blocked")

func NewBrowserLookup(cfg config.ProviderConfig) *BrowserLookup {
	timeout := float64(cfg.Timeout.Milliseconds())
	if timeout <= 0 {
		timeout = 60000
	}
	return &BrowserLookup{endpoint: cfg.Endpoint, timeout: timeout}
}

func (l *BrowserLookup) LookupProperty(ctx context.Context, address string) (*models.PropertyAttributes, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &models.PropertyLookupError{Address: address, Err: errors.New("empty address")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: err}
	}

	content, err := l.render(strings.ReplaceAll(l.endpoint, "{address}", url.QueryEscape(address)))
	if err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: err}
	}

	attrs, err := ParseRecordHTML(strings.NewReader(content))
	if err != nil {
		return nil, &models.PropertyLookupError{Address: address, Err: err}
	}
	if attrs.Address == "" {
		attrs.Address = address
	}
	return attrs, nil
}

func (l *BrowserLookup) render(target string) (string, error) {
	browser, err := l.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(l.timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && resp.Status() == 404 {
		return "", errAddressNotFound
	}

	handleConsent(page)

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	if trigger := detectBlocked(content); trigger != "" {
		return "", fmt.Errorf("%w: %s", errBlocked, trigger)
	}
	return content, nil
}

func (l *BrowserLookup) ensureBrowser() (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return l.browser, nil
	}

	var err error
	l.pw, err = playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	l.browser, err = l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		l.pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Println("Browser lookup: chromium started")
	l.initialized = true
	return l.browser, nil
}

// Close shuts the browser down. Safe to call when it never started.
func (l *BrowserLookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.browser.Close()
	err := l.pw.Stop()
	l.initialized = false
	return err
}

// detectBlocked returns the marker of a bot wall, or "" for a normal page
func detectBlocked(content string) string {
	if strings.Contains(content, "data-property") {
		return ""
	}

	triggers := []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"Access Denied",
		"This request was blocked",
		"Checking your browser",
	}
	for _, t := range triggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}

func handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"#didomi-notice-agree-button",
		"button[id*='accept']",
		"button[class*='consent']",
		"button:has-text('Accept All')",
		"button:has-text('Accept')",
		"button:has-text('Agree')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Browser lookup: clicking consent button %s", selector)
			btn.Click()
			page.WaitForTimeout(1000)
			break
		}
	}
}
