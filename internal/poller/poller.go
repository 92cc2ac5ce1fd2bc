package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
	"github.com/sovisith1/amazon-price-tracker/internal/scrape"
)

var (
	// ErrAlreadyRunning guards Start on a poller that is not Idle.
	ErrAlreadyRunning = errors.New("poller already running")

	// ErrNotRunning guards Stop on a poller that never started or
	// already stopped.
	ErrNotRunning = errors.New("poller not running")
)

// State is the poller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// Fetcher retrieves the current title and price for a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (scrape.Product, error)
}

// ObservationHandler receives each successfully scraped observation.
type ObservationHandler interface {
	HandleObservation(obs model.Observation) error
}

// ObservationHandlerFunc is a function adapter for ObservationHandler.
type ObservationHandlerFunc func(model.Observation) error

func (f ObservationHandlerFunc) HandleObservation(obs model.Observation) error {
	return f(obs)
}

// Config holds poller configuration.
type Config struct {
	Interval      time.Duration // Delay between scrapes (default: 60s)
	ScrapeTimeout time.Duration // Per-scrape timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      60 * time.Second,
		ScrapeTimeout: 15 * time.Second,
	}
}

// Stats counts poller activity.
type Stats struct {
	Ticks    int64 // Scrape attempts after the priming scrape
	Recorded int64 // Observations handed to the handler successfully
	Failures int64 // Scrape or handler failures
}

// Poller periodically scrapes one product URL and records observations.
type Poller struct {
	cfg     Config
	url     string
	fetcher Fetcher
	handler ObservationHandler
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	starting bool // priming scrape in flight, blocks a second Start
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	ticks    atomic.Int64
	recorded atomic.Int64
	failures atomic.Int64
}

// New creates a poller for url.
func New(cfg Config, url string, fetcher Fetcher, handler ObservationHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = DefaultConfig().ScrapeTimeout
	}
	return &Poller{
		cfg:     cfg,
		url:     url,
		fetcher: fetcher,
		handler: handler,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:    p.ticks.Load(),
		Recorded: p.recorded.Load(),
		Failures: p.failures.Load(),
	}
}

// Start performs the priming scrape synchronously, then begins the
// polling loop. If the priming scrape or its handler fails, the error is
// returned and the poller stays Idle. Start on a non-Idle poller returns
// ErrAlreadyRunning.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle || p.starting {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.starting = true
	p.mu.Unlock()

	// Priming scrape: hard failure, surfaced to the caller. Runs outside
	// the lock so State and Stop stay responsive while it is in flight.
	obs, err := p.scrape(ctx)
	if err == nil {
		err = p.handler.HandleObservation(obs)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.starting = false

	if err != nil {
		return err
	}
	p.recorded.Add(1)

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.state = StateRunning

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		"url", p.url,
		"interval", p.cfg.Interval,
	)

	return nil
}

// Stop transitions Running -> Stopped. It waits for any in-flight scrape
// to finish; after Stop returns no further handler calls occur. The ctx
// bounds how long to wait for the loop to drain.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.state = StateStopped
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped", "url", p.url)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the polling loop. Each tick waits Interval from the end of the
// previous scrape, so a slow scrape drifts rather than bursting.
func (p *Poller) run() {
	defer p.wg.Done()

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			p.tick()
			timer.Reset(p.cfg.Interval)
		}
	}
}

// tick performs one scrape-and-record cycle. Failures never escape.
func (p *Poller) tick() {
	p.ticks.Add(1)

	obs, err := p.scrape(p.ctx)
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("scrape failed",
			"url", p.url,
			"err", err,
		)
		return
	}

	if err := p.handler.HandleObservation(obs); err != nil {
		p.failures.Add(1)
		p.logger.Warn("failed to record observation",
			"url", p.url,
			"err", err,
		)
		return
	}

	p.recorded.Add(1)
	p.logger.Debug("recorded observation",
		"price", obs.Price,
		"title", obs.Title,
	)
}

// scrape fetches the page once and builds an Observation stamped "now".
func (p *Poller) scrape(ctx context.Context) (model.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ScrapeTimeout)
	defer cancel()

	product, err := p.fetcher.Fetch(ctx, p.url)
	if err != nil {
		return model.Observation{}, err
	}

	return model.NewObservation(time.Now(), product.Price, product.Title), nil
}
