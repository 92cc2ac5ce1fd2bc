package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativePrice is returned for observations with a price below zero.
	ErrNegativePrice = errors.New("observation price is negative")

	// ErrEmptyTitle is returned for observations with no product title.
	ErrEmptyTitle = errors.New("observation title is empty")
)

// Observation is one timestamped (price, title) sample for the tracked
// product. Observations are immutable once created and only ever appended;
// there is no update or delete (the log is an audit trail).
type Observation struct {
	ID         uuid.UUID       `json:"id"`
	ObservedAt time.Time       `json:"observed_at"`
	Price      decimal.Decimal `json:"price"`
	Title      string          `json:"title"`
}

// NewObservation builds an Observation with a fresh ID.
func NewObservation(observedAt time.Time, price decimal.Decimal, title string) Observation {
	return Observation{
		ID:         uuid.New(),
		ObservedAt: observedAt,
		Price:      price,
		Title:      title,
	}
}

// Validate checks the Observation invariants.
func (o Observation) Validate() error {
	if o.Price.IsNegative() {
		return ErrNegativePrice
	}
	if o.Title == "" {
		return ErrEmptyTitle
	}
	return nil
}

// TrackedProduct caches the display fields of the most recent Observation.
// It is derivable from the log (always equals the last Observation) and is
// never persisted on its own.
type TrackedProduct struct {
	URL       string
	Title     string
	LastPrice decimal.Decimal
	LastSeen  time.Time
}
