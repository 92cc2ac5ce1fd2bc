// Package scrape fetches the current title and price from an Amazon
// product page.
//
// The client sends a browser-like request, retries transient HTTP
// failures with jittered exponential backoff, and extracts fields with a
// CSS selector cascade. Parse failures (layout drift) are distinguished
// from network/HTTP failures so callers can tell the two apart.
package scrape
