package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ErrPageStructure marks pages that fetched fine but did not contain the
// expected title/price elements (layout change, captcha interstitial).
var ErrPageStructure = errors.New("unexpected page structure")

// Product is the result of one successful scrape.
type Product struct {
	Title string
	Price decimal.Decimal
}

// HTTPError represents a non-2xx response from Amazon.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("amazon http %d: %s", e.StatusCode, e.URL)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Price selectors in preference order, mirroring the page variants Amazon
// serves (buy box, deal box, sale box, inline price block).
var priceSelectors = []string{
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#priceblock_saleprice",
	".a-price-whole",
}

// Fetch retrieves the product page at url and extracts title and price.
// Transient HTTP failures (5xx, 429) are retried with jittered exponential
// backoff; network errors and parse failures are returned as is.
func (c *Client) Fetch(ctx context.Context, url string) (Product, error) {
	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return Product{}, err
	}
	defer body.Close()

	return parseProduct(body)
}

// getWithRetry performs the GET with exponential backoff retry.
func (c *Client) getWithRetry(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying fetch",
				"attempt", attempt,
				"backoff", jitter,
				"url", url,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a single GET and returns the body on a 2xx response.
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	return resp.Body, nil
}

// parseProduct extracts the title and price from page HTML.
func parseProduct(r io.Reader) (Product, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Product{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		return Product{}, fmt.Errorf("%w: product title not found", ErrPageStructure)
	}

	var priceText string
	for _, sel := range priceSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			priceText = t
			break
		}
	}
	if priceText == "" {
		return Product{}, fmt.Errorf("%w: price not found", ErrPageStructure)
	}

	price, err := parsePrice(priceText)
	if err != nil {
		return Product{}, fmt.Errorf("%w: cannot parse price %q", ErrPageStructure, priceText)
	}

	return Product{Title: title, Price: price}, nil
}

// parsePrice normalizes a displayed price ("$1,299.") to a decimal.
func parsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(text)
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), ".")
	return decimal.NewFromString(cleaned)
}
