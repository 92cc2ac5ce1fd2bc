package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
)

var (
	// ErrEmptyWindow means no observation fell inside the window. It is
	// an expected "no data yet" condition, never reported as a zero price.
	ErrEmptyWindow = errors.New("no price data in window")

	// ErrInvalidWindow rejects window lengths outside WindowDays.
	ErrInvalidWindow = errors.New("invalid window length")

	// ErrInvalidMetric rejects unknown metrics.
	ErrInvalidMetric = errors.New("invalid metric")
)

// Metric selects the aggregate to compute.
type Metric int

const (
	Lowest Metric = iota + 1
	Average
)

func (m Metric) String() string {
	switch m {
	case Lowest:
		return "lowest"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric converts a user-facing metric name.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowest":
		return Lowest, nil
	case "average":
		return Average, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetric, s)
	}
}

// WindowDays enumerates the valid lookback windows.
var WindowDays = []int{7, 30, 90, 180, 365, 730}

// ValidWindow reports whether days is one of the supported windows.
func ValidWindow(days int) bool {
	for _, d := range WindowDays {
		if d == days {
			return true
		}
	}
	return false
}

// Source provides the ordered observation sequence to aggregate over.
type Source interface {
	All() []model.Observation
}

// Run computes metric over the observations within the trailing window
// [now - days*24h, now]. Inputs are validated before the source is
// touched. Both boundaries are inclusive; observations stamped after the
// evaluation instant are outside the window.
func Run(src Source, metric Metric, days int, now time.Time) (decimal.Decimal, error) {
	if !ValidWindow(days) {
		return decimal.Zero, fmt.Errorf("%w: %d days", ErrInvalidWindow, days)
	}
	if metric != Lowest && metric != Average {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidMetric, metric)
	}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var (
		count int
		low   decimal.Decimal
		sum   decimal.Decimal
	)
	for _, o := range src.All() {
		if o.ObservedAt.Before(cutoff) || o.ObservedAt.After(now) {
			continue
		}
		if count == 0 || o.Price.LessThan(low) {
			low = o.Price
		}
		sum = sum.Add(o.Price)
		count++
	}

	if count == 0 {
		return decimal.Zero, fmt.Errorf("%w: past %d days", ErrEmptyWindow, days)
	}

	switch metric {
	case Lowest:
		return low, nil
	default:
		// Sum once, divide once, keep cent resolution.
		return sum.DivRound(decimal.NewFromInt(int64(count)), 2), nil
	}
}
