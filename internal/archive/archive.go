package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
)

// Config holds archiver configuration.
type Config struct {
	BatchSize     int           // Rows per insert batch (default: 100)
	FlushInterval time.Duration // Max time a row waits in the batch (default: 5s)
	BufferSize    int           // Enqueue buffer; full buffer drops (default: 1000)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1000,
	}
}

// Metrics counts archiver activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Dropped   int64
	Flushes   int64
}

// row is the price_history table shape.
type row struct {
	ID         uuid.UUID
	ObservedAt time.Time
	Price      string
	Title      string
}

// Archiver consumes observations and writes them to the price_history
// table in batches.
type Archiver struct {
	cfg    Config
	logger *slog.Logger

	input chan model.Observation
	db    *pgxpool.Pool

	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates an archiver writing to db.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Archiver{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan model.Observation, cfg.BufferSize),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Start begins consuming and flushing.
func (a *Archiver) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.flushTicker = time.NewTicker(a.cfg.FlushInterval)

	a.wg.Add(1)
	go a.consumeLoop()

	a.wg.Add(1)
	go a.flushLoop()

	a.logger.Info("archiver started",
		"batch_size", a.cfg.BatchSize,
		"flush_interval", a.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the loops and performs a final flush.
func (a *Archiver) Stop(ctx context.Context) error {
	a.logger.Info("stopping archiver")

	if a.cancel != nil {
		a.cancel()
	}
	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("archiver stopped")
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}

	a.drain()
	a.flush()

	return nil
}

// Enqueue hands an observation to the archiver. Never blocks: when the
// buffer is full the row is dropped and counted, the log file already has
// the durable copy.
func (a *Archiver) Enqueue(obs model.Observation) {
	select {
	case a.input <- obs:
	default:
		a.batchMu.Lock()
		a.metrics.Dropped++
		a.batchMu.Unlock()
		a.logger.Warn("archive buffer full, dropping row", "id", obs.ID)
	}
}

// Stats returns current metrics.
func (a *Archiver) Stats() Metrics {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return a.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (a *Archiver) consumeLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case obs := <-a.input:
			a.handleObservation(obs)
		}
	}
}

// flushLoop periodically flushes the batch.
func (a *Archiver) flushLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.flushTicker.C:
			a.flush()
		}
	}
}

// drain moves anything left in the input buffer into the batch.
func (a *Archiver) drain() {
	for {
		select {
		case obs := <-a.input:
			a.handleObservation(obs)
		default:
			return
		}
	}
}

// handleObservation transforms and adds an observation to the batch.
func (a *Archiver) handleObservation(obs model.Observation) {
	r := a.transform(obs)

	a.batchMu.Lock()
	a.batch = append(a.batch, r)
	shouldFlush := len(a.batch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if shouldFlush {
		a.flush()
	}
}

// transform converts an Observation to a price_history row.
func (a *Archiver) transform(obs model.Observation) row {
	return row{
		ID:         obs.ID,
		ObservedAt: obs.ObservedAt.UTC(),
		Price:      obs.Price.StringFixed(2),
		Title:      obs.Title,
	}
}

// flush writes the current batch to the database.
func (a *Archiver) flush() {
	a.batchMu.Lock()
	if len(a.batch) == 0 {
		a.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := a.batch
	a.batch = make([]row, 0, a.cfg.BatchSize)
	a.batchMu.Unlock()

	start := time.Now()

	conflicts, err := a.batchInsert(batch)
	if err != nil {
		a.logger.Error("batch insert failed", "error", err, "count", len(batch))
		a.batchMu.Lock()
		a.metrics.Errors++
		a.batchMu.Unlock()
		return
	}

	a.batchMu.Lock()
	a.metrics.Inserts += int64(len(batch) - conflicts)
	a.metrics.Conflicts += int64(conflicts)
	a.metrics.Flushes++
	a.batchMu.Unlock()

	a.logger.Debug("flushed observations",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// It uses its own context so the final flush still runs after Stop
// cancelled the loops.
func (a *Archiver) batchInsert(rows []row) (conflicts int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO price_history (id, observed_at, price, title)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ObservedAt, r.Price, r.Title)
	}

	results := a.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
