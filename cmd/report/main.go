// Command report runs a single aggregate query over an existing price
// log, without starting a tracking session.
//
//	report -store price_data.ndjson -metric average -days 30
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sovisith1/amazon-price-tracker/internal/query"
	"github.com/sovisith1/amazon-price-tracker/internal/store"
)

func main() {
	storePath := flag.String("store", "price_data.ndjson", "path to the price log")
	metricName := flag.String("metric", "lowest", "metric: lowest or average")
	days := flag.Int("days", 7, "window length in days (7, 30, 90, 180, 365, 730)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	metric, err := query.ParseMetric(*metricName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !query.ValidWindow(*days) {
		fmt.Fprintf(os.Stderr, "invalid window %d: valid windows are %v\n", *days, query.WindowDays)
		os.Exit(2)
	}

	st, err := store.Open(*storePath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open price log:", err)
		os.Exit(1)
	}
	defer st.Close()

	value, err := query.Run(st, metric, *days, time.Now())
	switch {
	case errors.Is(err, query.ErrEmptyWindow):
		fmt.Printf("no price data in the last %d days (%d observations total)\n", *days, st.Len())
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, "query failed:", err)
		os.Exit(1)
	}

	fmt.Printf("%s price in last %d days: $%s\n", metric, *days, value.StringFixed(2))
}
