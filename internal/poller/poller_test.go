package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
	"github.com/sovisith1/amazon-price-tracker/internal/scrape"
)

// fetchFunc is a function adapter for Fetcher.
type fetchFunc func(ctx context.Context, url string) (scrape.Product, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (scrape.Product, error) {
	return f(ctx, url)
}

func okFetcher(price string) Fetcher {
	return fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		return scrape.Product{
			Title: "Widget Deluxe",
			Price: decimal.RequireFromString(price),
		}, nil
	})
}

func countingHandler(count *atomic.Int32) ObservationHandler {
	return ObservationHandlerFunc(func(obs model.Observation) error {
		count.Add(1)
		return nil
	})
}

func TestPoller_StartPrimesSynchronously(t *testing.T) {
	var count atomic.Int32

	cfg := Config{Interval: time.Hour, ScrapeTimeout: time.Second}
	p := New(cfg, "https://example.com/p", okFetcher("899.00"), countingHandler(&count), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	// The priming observation must be recorded before Start returns.
	if got := count.Load(); got != 1 {
		t.Errorf("observations after Start = %d, want 1", got)
	}
	if p.State() != StateRunning {
		t.Errorf("State = %v, want StateRunning", p.State())
	}
}

func TestPoller_StartFailsWhenPrimingScrapeFails(t *testing.T) {
	var count atomic.Int32
	fetchErr := errors.New("amazon http 503")
	failing := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		return scrape.Product{}, fetchErr
	})

	p := New(Config{Interval: time.Hour}, "https://example.com/p", failing, countingHandler(&count), nil)

	err := p.Start(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Start error = %v, want %v", err, fetchErr)
	}
	if got := count.Load(); got != 0 {
		t.Errorf("observations after failed Start = %d, want 0", got)
	}
	if p.State() != StateIdle {
		t.Errorf("State = %v, want StateIdle", p.State())
	}

	// A failed Start leaves the poller startable.
	p2 := New(Config{Interval: time.Hour}, "https://example.com/p", okFetcher("1.00"), countingHandler(&count), nil)
	if err := p2.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	p2.Stop(context.Background())
}

func TestPoller_StartTwice(t *testing.T) {
	var count atomic.Int32
	p := New(Config{Interval: time.Hour}, "u", okFetcher("1.00"), countingHandler(&count), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestPoller_StateAndSecondStartDoNotBlockDuringPriming(t *testing.T) {
	var count atomic.Int32
	release := make(chan struct{})
	slow := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		<-release
		return scrape.Product{Title: "W", Price: decimal.New(1, 0)}, nil
	})

	cfg := Config{Interval: time.Hour, ScrapeTimeout: 5 * time.Second}
	p := New(cfg, "u", slow, countingHandler(&count), nil)

	startDone := make(chan error, 1)
	go func() { startDone <- p.Start(context.Background()) }()

	// Give the goroutine time to enter the priming scrape.
	time.Sleep(20 * time.Millisecond)

	// Neither call may wait out the scrape.
	checked := make(chan struct{})
	go func() {
		defer close(checked)
		if got := p.State(); got != StateIdle {
			t.Errorf("State during priming = %v, want StateIdle", got)
		}
		if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("concurrent Start = %v, want ErrAlreadyRunning", err)
		}
	}()

	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Fatal("State/Start blocked behind the priming scrape")
	}

	close(release)
	if err := <-startDone; err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Stop(context.Background())
}

func TestPoller_TicksRecordObservations(t *testing.T) {
	var count atomic.Int32
	cfg := Config{Interval: 20 * time.Millisecond, ScrapeTimeout: time.Second}
	p := New(cfg, "u", okFetcher("42.00"), countingHandler(&count), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(110 * time.Millisecond)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Priming plus at least two ticks.
	if got := count.Load(); got < 3 {
		t.Errorf("observations = %d, want >= 3", got)
	}
}

func TestPoller_ScrapeFailureIsSoft(t *testing.T) {
	var calls, count atomic.Int32
	flaky := fetchFunc(func(ctx context.Context, url string) (scrape.Product, error) {
		if calls.Add(1) == 2 {
			return scrape.Product{}, errors.New("network down")
		}
		return scrape.Product{Title: "W", Price: decimal.New(10, 0)}, nil
	})

	cfg := Config{Interval: 20 * time.Millisecond, ScrapeTimeout: time.Second}
	p := New(cfg, "u", flaky, countingHandler(&count), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(110 * time.Millisecond)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := p.Stats()
	if stats.Failures != 1 {
		t.Errorf("Failures = %d, want 1", stats.Failures)
	}
	// The failed tick recorded nothing but later ticks kept appending.
	if stats.Recorded < 3 {
		t.Errorf("Recorded = %d, want >= 3", stats.Recorded)
	}
	if want := stats.Recorded; count.Load() != int32(want) {
		t.Errorf("handler calls = %d, want %d", count.Load(), want)
	}
}

func TestPoller_HandlerFailureIsSoft(t *testing.T) {
	var calls atomic.Int32
	rejecting := ObservationHandlerFunc(func(obs model.Observation) error {
		if calls.Add(1) > 1 {
			return errors.New("disk full")
		}
		return nil
	})

	cfg := Config{Interval: 20 * time.Millisecond, ScrapeTimeout: time.Second}
	p := New(cfg, "u", okFetcher("9.99"), rejecting, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(70 * time.Millisecond)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := p.Stats()
	if stats.Failures == 0 {
		t.Error("Failures = 0, want > 0 when the handler rejects writes")
	}
	if stats.Recorded != 1 {
		t.Errorf("Recorded = %d, want 1 (priming only)", stats.Recorded)
	}
}

func TestPoller_StopHaltsWrites(t *testing.T) {
	var count atomic.Int32
	cfg := Config{Interval: 10 * time.Millisecond, ScrapeTimeout: time.Second}
	p := New(cfg, "u", okFetcher("5.00"), countingHandler(&count), nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(35 * time.Millisecond)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("State = %v, want StateStopped", p.State())
	}

	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Errorf("observations grew from %d to %d after Stop", after, got)
	}
}

func TestPoller_StopWhenNotRunning(t *testing.T) {
	var count atomic.Int32
	p := New(Config{Interval: time.Hour}, "u", okFetcher("1.00"), countingHandler(&count), nil)

	if err := p.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop before Start = %v, want ErrNotRunning", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Interval != 60*time.Second {
		t.Errorf("Interval = %v, want 60s", cfg.Interval)
	}
	if cfg.ScrapeTimeout != 15*time.Second {
		t.Errorf("ScrapeTimeout = %v, want 15s", cfg.ScrapeTimeout)
	}
}
