package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"fusion-trader/internal/engine"
	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/lifecycle"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/marketdata"
	"fusion-trader/internal/publish"
	"fusion-trader/internal/sim"
	"fusion-trader/internal/store"
	"fusion-trader/internal/trace"
	"fusion-trader/internal/tradelog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	for i, inst := range cfg.Watchlist {
		cfg.Watchlist[i] = strings.ToUpper(inst)
	}

	feed, err := initializeFeed(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load market data", err)
		return err
	}

	logger.Info(ctx, "Bot starting", "mode", cfg.Mode, "watchlist", cfg.Watchlist)
	if cfg.Mode == "BACKTEST" {
		return runBacktest(ctx, cfg, feed)
	}
	return runPaper(ctx, cfg, feed)
}

// runBacktest replays the feed's timeline against an in-memory ledger and
// prints the run summary as JSON.
func runBacktest(ctx context.Context, cfg *store.Config, feed *marketdata.MemoryFeed) error {
	timeline := feed.Timestamps()
	if len(timeline) == 0 {
		return errors.New("backtest: feed has no bars")
	}

	l, _, err := initializeLedger(ctx, cfg, false)
	if err != nil {
		return err
	}
	gate, err := initializeGate(cfg)
	if err != nil {
		return err
	}
	journal := tradelog.New(filepath.Join(cfg.Infra.LogDir, "backtest"), time.UTC)
	clock := sim.NewClock(timeline[0])

	_, eng := initializeEngine(cfg, engine.Deps{
		Market:    feed,
		News:      feed,
		Decider:   initializeDecider(cfg),
		Gate:      gate,
		Lifecycle: lifecycle.New(lifecycleConfig(cfg), l),
		Ledger:    l,
		Publisher: publish.NewMulti(publish.NewJournalPublisher(journal)),
		Journal:   journal,
		Clock:     clock.Now,
	})

	driver := &sim.Driver{Engine: eng, Ledger: l, Series: feed, Clock: clock, Instruments: cfg.Watchlist}
	sum, err := driver.Run(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Backtest failed", err)
		return err
	}

	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))

	summarizer, err := initializeEOD(cfg, l)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("backtest_%s_%s", sum.Start.Format("20060102"), sum.End.Format("20060102"))
	if _, err := summarizer.SummarizeRange(ctx, sum.Start, sum.End.Add(time.Nanosecond), name); err != nil {
		return err
	}
	return nil
}

// runPaper polls the watchlist on a ticker until interrupted, writing the
// EOD summary once per day after the close.
func runPaper(ctx context.Context, cfg *store.Config, feed *marketdata.MemoryFeed) error {
	l, closeLedger, err := initializeLedger(ctx, cfg, true)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize ledger", err)
		return err
	}
	defer closeLedger()

	locker, closeLocker, err := initializeLocker(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize locker", err)
		return err
	}
	defer closeLocker()

	gate, err := initializeGate(cfg)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.EOD.TimeZone)
	if err != nil {
		return err
	}
	journal := tradelog.New(cfg.Infra.LogDir, loc)
	compressOldLogs(ctx, journal, cfg.Infra.LogRetentionDays)

	hub := publish.NewWSHub()
	go hub.Run(ctx)

	pub, closePub := initializePublisher(ctx, cfg, journal, hub)
	defer closePub()

	raw, eng := initializeEngine(cfg, engine.Deps{
		Market:    feed,
		News:      feed,
		Decider:   initializeDecider(cfg),
		Gate:      gate,
		Lifecycle: lifecycle.New(lifecycleConfig(cfg), l),
		Ledger:    l,
		Locker:    locker,
		Publisher: pub,
		Journal:   journal,
		Cache:     initializeCache(ctx, cfg),
	})

	summarizer, err := initializeEOD(cfg, l)
	if err != nil {
		return err
	}

	if cfg.HTTP.Enabled {
		srv := initializeHTTP(cfg, raw, eng, l, hub)
		go func() {
			logger.Info(ctx, "HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorWithErr(ctx, "HTTP server failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	poll := time.Duration(cfg.PollSeconds) * time.Second
	if poll <= 0 {
		poll = time.Minute
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()
	eodTick := time.NewTicker(time.Minute)
	defer eodTick.Stop()

	logger.Info(ctx, "Bot started", "poll", poll)
	runCycle(ctx, eng, cfg.Watchlist)
	for {
		select {
		case <-tick.C:
			runCycle(ctx, eng, cfg.Watchlist)
		case now := <-eodTick.C:
			if ok, _ := summarizer.ShouldRunNow(now); ok {
				_, _ = summarizer.SummarizeDay(ctx, now)
			}
		case <-ctx.Done():
			logger.Info(context.Background(), "Shutting down")
			_, _ = summarizer.SummarizeDay(context.Background(), time.Now())
			return nil
		}
	}
}

func runCycle(ctx context.Context, eng interfaces.Engine, watchlist []string) {
	results, err := engine.RunBatch(ctx, eng, watchlist)
	if err != nil {
		logger.Warn(ctx, "Cycle finished with errors", "error", err)
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		logger.Debug(ctx, "Step complete",
			"instrument", r.Instrument,
			"decision", string(r.Decision.Decision),
			"trades", len(r.Trades),
			"reason", r.Reason,
		)
	}
}
