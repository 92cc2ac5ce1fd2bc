package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sovisith1/amazon-price-tracker/internal/archive"
	"github.com/sovisith1/amazon-price-tracker/internal/config"
	"github.com/sovisith1/amazon-price-tracker/internal/database"
	"github.com/sovisith1/amazon-price-tracker/internal/poller"
	"github.com/sovisith1/amazon-price-tracker/internal/query"
	"github.com/sovisith1/amazon-price-tracker/internal/scrape"
	"github.com/sovisith1/amazon-price-tracker/internal/session"
	"github.com/sovisith1/amazon-price-tracker/internal/store"
	"github.com/sovisith1/amazon-price-tracker/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	urlFlag := flag.String("url", "", "product URL (overrides config)")
	flag.Parse()

	// Load configuration
	var cfg *config.TrackerConfig
	if *configPath != "" {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := readLines(os.Stdin)

	// Resolve the product URL: flag, then config, then prompt.
	url := *urlFlag
	if url == "" {
		url = cfg.Product.URL
	}
	if url == "" {
		answer, ok := prompt(ctx, lines, "Paste Amazon product URL: ")
		if !ok {
			return
		}
		url = answer
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "no product URL given")
		os.Exit(1)
	}

	// Open the durable price log
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("failed to open price log", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Scrape client
	scrapeOpts := []scrape.ClientOption{
		scrape.WithLogger(logger),
		scrape.WithTimeout(cfg.Poller.ScrapeTimeout),
		scrape.WithRetries(cfg.Scrape.MaxRetries, cfg.Scrape.RetryBackoff),
	}
	if cfg.Scrape.UserAgent != "" {
		scrapeOpts = append(scrapeOpts, scrape.WithUserAgent(cfg.Scrape.UserAgent))
	}
	client := scrape.NewClient(scrapeOpts...)

	// Optional Postgres mirror
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Postgres.Host,
			"database", cfg.Archive.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Archive.Postgres)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		archiver = archive.New(archive.Config{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, pool, logger)
	}

	pollerCfg := poller.Config{
		Interval:      cfg.Poller.Interval,
		ScrapeTimeout: cfg.Poller.ScrapeTimeout,
	}
	sess := session.New(pollerCfg, url, st, client, archiver, logger)

	// Priming scrape runs here; a failure means we never start tracking.
	fmt.Println("\nInitial scrape ...")
	if err := sess.Start(ctx); err != nil {
		logger.Error("initial scrape failed", "error", err)
		os.Exit(1)
	}

	product := sess.Product()
	fmt.Printf("Now tracking: %s  $%s\n", product.Title, product.LastPrice.StringFixed(2))
	fmt.Println("Logging to", st.Path())
	fmt.Printf("Background polling every %s started.\n", cfg.Poller.Interval)

	// Foreground menu and signal watcher run under one group; either one
	// finishing tears the session down.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			return context.Canceled
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		runMenu(gctx, lines, sess)
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session error", "error", err)
	}

	fmt.Println("\nStopping. Bye!")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := sess.Stop(stopCtx); err != nil && !errors.Is(err, poller.ErrNotRunning) {
		logger.Error("failed to stop session", "error", err)
	}

	stats := sess.Stats()
	logger.Info("tracker stopped",
		"ticks", stats.Ticks,
		"recorded", stats.Recorded,
		"failures", stats.Failures,
	)
}

// runMenu drives the metric/window prompt loop until quit or cancel.
func runMenu(ctx context.Context, lines <-chan string, sess *session.Session) {
	for {
		metric, ok := chooseMetric(ctx, lines)
		if !ok {
			return
		}
		days, ok := chooseWindow(ctx, lines)
		if !ok {
			return
		}

		value, err := sess.Query(metric, days)
		switch {
		case errors.Is(err, query.ErrEmptyWindow):
			fmt.Println("  Not enough data yet, try again later.")
		case err != nil:
			fmt.Println("  Query failed:", err)
		default:
			fmt.Printf("  %s price in last %d days: $%s\n",
				strings.ToUpper(metric.String()), days, value.StringFixed(2))
		}
		fmt.Println()
	}
}

// chooseMetric prompts until a valid metric or quit.
func chooseMetric(ctx context.Context, lines <-chan string) (query.Metric, bool) {
	fmt.Println("\nMetric: 1) Lowest  2) Average")
	for {
		answer, ok := prompt(ctx, lines, "Choose 1 or 2 (q to quit): ")
		if !ok {
			return 0, false
		}
		switch strings.ToLower(answer) {
		case "1":
			return query.Lowest, true
		case "2":
			return query.Average, true
		case "q":
			return 0, false
		}
		fmt.Println("Invalid choice.")
	}
}

// chooseWindow prompts until a valid window or quit.
func chooseWindow(ctx context.Context, lines <-chan string) (int, bool) {
	fmt.Println("\nTimeframe:")
	for i, days := range query.WindowDays {
		fmt.Printf("  %d) Past %d days\n", i+1, days)
	}
	for {
		answer, ok := prompt(ctx, lines, "Choose option (q to quit): ")
		if !ok {
			return 0, false
		}
		if strings.EqualFold(answer, "q") {
			return 0, false
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(query.WindowDays) {
			return query.WindowDays[n-1], true
		}
		fmt.Println("Invalid choice.")
	}
}

// prompt prints text and waits for the next input line. ok is false when
// input is exhausted or the context is cancelled.
func prompt(ctx context.Context, lines <-chan string, text string) (string, bool) {
	fmt.Print(text)
	select {
	case <-ctx.Done():
		return "", false
	case line, open := <-lines:
		if !open {
			return "", false
		}
		return strings.TrimSpace(line), true
	}
}

// readLines feeds stdin lines into a channel so prompts can also react
// to cancellation.
func readLines(r *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

// logLevel maps the config level string to a slog level.
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
