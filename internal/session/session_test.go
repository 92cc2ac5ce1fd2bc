package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
	"github.com/sovisith1/amazon-price-tracker/internal/poller"
	"github.com/sovisith1/amazon-price-tracker/internal/query"
	"github.com/sovisith1/amazon-price-tracker/internal/scrape"
	"github.com/sovisith1/amazon-price-tracker/internal/store"
)

type fetchFunc func(ctx context.Context, url string) (scrape.Product, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (scrape.Product, error) {
	return f(ctx, url)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "prices.ndjson"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSession_StartRecordsAndCaches(t *testing.T) {
	st := openTestStore(t)
	fetcher := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		return scrape.Product{Title: "Widget Deluxe", Price: decimal.RequireFromString("899.00")}, nil
	})

	cfg := poller.Config{Interval: time.Hour, ScrapeTimeout: time.Second}
	sess := New(cfg, "https://example.com/p", st, fetcher, nil, nil)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sess.Stop(context.Background())

	if st.Len() != 1 {
		t.Fatalf("store has %d observations after Start, want 1", st.Len())
	}

	product := sess.Product()
	if product.Title != "Widget Deluxe" {
		t.Errorf("Product().Title = %q, want %q", product.Title, "Widget Deluxe")
	}
	if product.LastPrice.String() != "899" {
		t.Errorf("Product().LastPrice = %s, want 899", product.LastPrice)
	}
	if product.URL != "https://example.com/p" {
		t.Errorf("Product().URL = %q, want the tracked URL", product.URL)
	}
}

func TestSession_StartFailsOnBadScrape(t *testing.T) {
	st := openTestStore(t)
	fetchErr := errors.New("price not found")
	fetcher := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		return scrape.Product{}, fetchErr
	})

	cfg := poller.Config{Interval: time.Hour, ScrapeTimeout: time.Second}
	sess := New(cfg, "u", st, fetcher, nil, nil)

	if err := sess.Start(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("Start = %v, want %v", err, fetchErr)
	}
	if st.Len() != 0 {
		t.Errorf("store gained %d observations from a failed Start, want 0", st.Len())
	}
}

func TestSession_QueryOverRecordedPrices(t *testing.T) {
	st := openTestStore(t)

	prices := []string{"899.00", "879.00"}
	var calls int
	fetcher := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		p := prices[calls%len(prices)]
		calls++
		return scrape.Product{Title: "W", Price: decimal.RequireFromString(p)}, nil
	})

	cfg := poller.Config{Interval: 15 * time.Millisecond, ScrapeTimeout: time.Second}
	sess := New(cfg, "u", st, fetcher, nil, nil)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	low, err := sess.Query(query.Lowest, 7)
	if err != nil {
		t.Fatalf("Query(Lowest) failed: %v", err)
	}
	if low.String() != "879" {
		t.Errorf("Query(Lowest, 7) = %s, want 879", low)
	}

	if _, err := sess.Query(query.Lowest, 14); !errors.Is(err, query.ErrInvalidWindow) {
		t.Errorf("Query with 14-day window = %v, want ErrInvalidWindow", err)
	}
}

func TestSession_ResumeSeedsProductFromLog(t *testing.T) {
	st := openTestStore(t)

	prev := model.NewObservation(
		time.Now().Add(-time.Hour),
		decimal.RequireFromString("920.00"),
		"Widget Deluxe",
	)
	if err := st.Append(prev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	cfg := poller.Config{Interval: time.Hour}
	sess := New(cfg, "u", st, nil, nil, nil)

	product := sess.Product()
	if product.Title != "Widget Deluxe" {
		t.Errorf("resumed Title = %q, want %q", product.Title, "Widget Deluxe")
	}
	if product.LastPrice.String() != "920" {
		t.Errorf("resumed LastPrice = %s, want 920", product.LastPrice)
	}
}

func TestSession_StopHaltsRecording(t *testing.T) {
	st := openTestStore(t)
	fetcher := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		return scrape.Product{Title: "W", Price: decimal.New(1, 0)}, nil
	})

	cfg := poller.Config{Interval: 10 * time.Millisecond, ScrapeTimeout: time.Second}
	sess := New(cfg, "u", st, fetcher, nil, nil)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(35 * time.Millisecond)
	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	after := st.Len()
	time.Sleep(50 * time.Millisecond)
	if got := st.Len(); got != after {
		t.Errorf("store grew from %d to %d after Stop", after, got)
	}

	if err := sess.Stop(context.Background()); !errors.Is(err, poller.ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}
