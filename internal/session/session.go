package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sovisith1/amazon-price-tracker/internal/archive"
	"github.com/sovisith1/amazon-price-tracker/internal/model"
	"github.com/sovisith1/amazon-price-tracker/internal/poller"
	"github.com/sovisith1/amazon-price-tracker/internal/query"
	"github.com/sovisith1/amazon-price-tracker/internal/store"
)

// Session owns the tracking lifecycle for one product URL.
type Session struct {
	url      string
	store    *store.Store
	poller   *poller.Poller
	archiver *archive.Archiver // nil when the mirror is disabled
	logger   *slog.Logger

	mu      sync.RWMutex
	product model.TrackedProduct
}

// New creates a session. archiver may be nil.
func New(cfg poller.Config, url string, st *store.Store, fetcher poller.Fetcher, archiver *archive.Archiver, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		url:      url,
		store:    st,
		archiver: archiver,
		logger:   logger,
		product:  model.TrackedProduct{URL: url},
	}
	s.poller = poller.New(cfg, url, fetcher, s, logger)

	// Seed the display cache from the log when resuming a product.
	if last, ok := st.Last(); ok {
		s.product.Title = last.Title
		s.product.LastPrice = last.Price
		s.product.LastSeen = last.ObservedAt
	}

	return s
}

// HandleObservation records one scraped observation: durable log first,
// then the display cache, then the archive mirror. A store failure drops
// the observation entirely (the poller logs it and the tick is lost).
func (s *Session) HandleObservation(obs model.Observation) error {
	if err := s.store.Append(obs); err != nil {
		return err
	}

	s.mu.Lock()
	s.product.Title = obs.Title
	s.product.LastPrice = obs.Price
	s.product.LastSeen = obs.ObservedAt
	s.mu.Unlock()

	if s.archiver != nil {
		s.archiver.Enqueue(obs)
	}

	return nil
}

// Start runs the priming scrape and begins background polling. A priming
// failure is returned as is and nothing is recorded.
func (s *Session) Start(ctx context.Context) error {
	if s.archiver != nil {
		if err := s.archiver.Start(ctx); err != nil {
			return err
		}
	}

	if err := s.poller.Start(ctx); err != nil {
		if s.archiver != nil {
			s.archiver.Stop(ctx)
		}
		return err
	}

	return nil
}

// Stop halts polling, waits out any in-flight scrape, and flushes the
// archiver. After Stop returns the log gains no further entries.
func (s *Session) Stop(ctx context.Context) error {
	err := s.poller.Stop(ctx)

	if s.archiver != nil {
		if aerr := s.archiver.Stop(ctx); err == nil {
			err = aerr
		}
	}

	return err
}

// Query computes metric over the trailing window, evaluated at "now".
func (s *Session) Query(metric query.Metric, days int) (decimal.Decimal, error) {
	return query.Run(s.store, metric, days, time.Now())
}

// Product returns the current tracked-product snapshot.
func (s *Session) Product() model.TrackedProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product
}

// Stats exposes the poller counters for status display.
func (s *Session) Stats() poller.Stats {
	return s.poller.Stats()
}
