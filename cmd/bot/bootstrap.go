package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fusion-trader/internal/api"
	"fusion-trader/internal/decision"
	"fusion-trader/internal/engine"
	"fusion-trader/internal/engine/engineobs"
	"fusion-trader/internal/eod"
	"fusion-trader/internal/eod/eodobs"
	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
	"fusion-trader/internal/lifecycle"
	"fusion-trader/internal/lock"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/marketdata"
	"fusion-trader/internal/publish"
	"fusion-trader/internal/regime"
	"fusion-trader/internal/risk"
	"fusion-trader/internal/sentiment"
	"fusion-trader/internal/store"
	"fusion-trader/internal/strategy"
	"fusion-trader/internal/technical"
	"fusion-trader/internal/trace"
	"fusion-trader/internal/tradelog"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs gzips journal files past the retention window
func compressOldLogs(ctx context.Context, j *tradelog.Journal, days int) {
	if days <= 0 {
		return
	}
	if err := j.CompressOlder(days, time.Now()); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeFeed builds the market-data and news feed from cfg.Data
func initializeFeed(ctx context.Context, cfg *store.Config) (*marketdata.MemoryFeed, error) {
	if cfg.Data.Source == "SYNTHETIC" {
		syn := marketdata.DefaultSynthetic(cfg.Watchlist)
		syn.Days = cfg.Data.Days
		syn.Seed = cfg.Data.Seed
		syn.MacroTag = cfg.MacroTag
		logger.Info(ctx, "Using synthetic market data", "days", syn.Days, "seed", syn.Seed)
		return syn.Feed(), nil
	}

	feed := marketdata.NewMemoryFeed()
	for _, inst := range cfg.Watchlist {
		path := filepath.Join(cfg.Data.Dir, strings.ToUpper(inst)+".csv")
		bars, err := marketdata.LoadBarsFile(path, strings.ToUpper(inst))
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", inst, err)
		}
		feed.AddBars(bars...)
	}

	// volatility and events are optional: without them the regime is NO_DATA
	// and sentiment is neutral
	if readings, err := marketdata.LoadVolatilityFile(filepath.Join(cfg.Data.Dir, "volatility.csv")); err == nil {
		feed.AddVolatility(readings...)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if events, err := marketdata.LoadEventsFile(filepath.Join(cfg.Data.Dir, "events.csv")); err == nil {
		feed.AddEvents(events...)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	logger.Info(ctx, "Loaded CSV market data", "dir", cfg.Data.Dir, "instruments", len(cfg.Watchlist))
	return feed, nil
}

// initializeLedger opens the Postgres ledger when DATABASE_URL is set and an
// in-memory one otherwise. The returned func releases the pool.
func initializeLedger(ctx context.Context, cfg *store.Config, persistent bool) (*ledger.Ledger, func(), error) {
	initial := decimal.NewFromFloat(cfg.Risk.InitialCash)
	rate := decimal.NewFromFloat(cfg.Risk.CommissionRate)

	if !persistent || cfg.Infra.DatabaseURL == "" {
		st := ledger.NewMemoryStore()
		if err := st.Init(ctx, initial); err != nil {
			return nil, nil, err
		}
		return ledger.New(st, rate), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Infra.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	st := ledger.NewPostgresStore(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.Init(ctx, initial); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info(ctx, "Using Postgres ledger")
	return ledger.New(st, rate), pool.Close, nil
}

// initializeLocker returns a Redis lease lock when REDIS_URL is set
func initializeLocker(ctx context.Context, cfg *store.Config) (lock.Locker, func(), error) {
	if cfg.Infra.RedisURL == "" {
		return lock.NewLocal(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Infra.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info(ctx, "Using Redis instrument locks", "ttl", cfg.Infra.LockTTL)
	return lock.NewRedisLocker(rdb, "fusion-trader:lock:", cfg.Infra.LockTTL), func() { rdb.Close() }, nil
}

// initializePublisher fans trades out to the journal, the websocket hub and,
// when brokers are configured, Kafka
func initializePublisher(ctx context.Context, cfg *store.Config, j *tradelog.Journal, hub *publish.WSHub) (*publish.Multi, func()) {
	pubs := []interfaces.Publisher{publish.NewJournalPublisher(j)}
	if hub != nil {
		pubs = append(pubs, hub)
	}

	closeFn := func() {}
	if len(cfg.Infra.KafkaBrokers) > 0 {
		zl, err := zap.NewProduction()
		if err != nil {
			zl = zap.NewNop()
		}
		publish.EnsureTopic(ctx, cfg.Infra.KafkaBrokers[0], cfg.Infra.KafkaTopic, zl)
		kp := publish.NewKafkaPublisher(cfg.Infra.KafkaBrokers, cfg.Infra.KafkaTopic, zl)
		pubs = append(pubs, kp)
		closeFn = func() {
			kp.Close()
			zl.Sync()
		}
		logger.Info(ctx, "Publishing trades to Kafka", "topic", cfg.Infra.KafkaTopic)
	}
	return publish.NewMulti(pubs...), closeFn
}

// initializeDecider builds the composer from the analysis sections of cfg
func initializeDecider(cfg *store.Config) *decision.Composer {
	hours := func(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }

	var sel decision.Selector
	if cfg.Strategy.Enabled {
		sel = strategy.NewSelector(strategy.SelectorConfig{
			GapRatio:           cfg.Strategy.GapRatio,
			GapPct:             cfg.Strategy.GapPct,
			GapSentiment:       cfg.Strategy.GapSentiment,
			MomentumRatio:      cfg.Strategy.MomentumRatio,
			MomentumSentiment:  cfg.Strategy.MomentumSentiment,
			ReversionRatio:     cfg.Strategy.ReversionRatio,
			ReversionSentiment: cfg.Strategy.ReversionSentiment,
		})
	}

	return decision.NewComposer(
		decision.Config{StrategiesEnabled: cfg.Strategy.Enabled, MinConfidence: cfg.Strategy.MinConfidence},
		regime.New(regime.Config{HighPanic: cfg.Regime.HighPanic, LowFear: cfg.Regime.LowFear}),
		technical.New(technical.Config{RSIPeriod: cfg.Technical.RSIPeriod}),
		sentiment.New(sentiment.Config{
			MacroWindow:      hours(cfg.Sentiment.MacroWindowHours),
			InstrumentWindow: hours(cfg.Sentiment.InstrumentWindowHours),
			MatchWeight:      cfg.Sentiment.MatchWeight,
			BaseWeight:       cfg.Sentiment.BaseWeight,
		}),
		sel,
	)
}

// initializeGate builds the risk gate, including the trading window when enabled
func initializeGate(cfg *store.Config) (*risk.Gate, error) {
	r := cfg.Risk
	limits := make(map[string]decimal.Decimal, len(r.InstrumentLimits))
	for k, v := range r.InstrumentLimits {
		limits[strings.ToUpper(k)] = decimal.NewFromFloat(v)
	}

	var window *risk.TradingWindow
	if r.TradingWindow.Enabled {
		w, err := risk.NewTradingWindow(r.TradingWindow.Start, r.TradingWindow.End, r.TradingWindow.TimeZone, r.TradingWindow.WeekdaysOnly)
		if err != nil {
			return nil, err
		}
		window = w
	}

	return risk.NewGate(risk.Config{
		PerTradeFraction: decimal.NewFromFloat(r.PerTradeFraction),
		MaxPositionSize:  decimal.NewFromFloat(r.MaxPositionSize),
		MaxExposurePct:   decimal.NewFromFloat(r.MaxExposurePct),
		InstrumentLimit:  decimal.NewFromFloat(r.InstrumentLimit),
		InstrumentLimits: limits,
		CommissionRate:   decimal.NewFromFloat(r.CommissionRate),
		AllowPyramiding:  r.AllowPyramiding,
		Window:           window,
	}), nil
}

func lifecycleConfig(cfg *store.Config) lifecycle.Config {
	return lifecycle.Config{
		StopLossPct:     cfg.Lifecycle.StopLossPct,
		TakeProfitPct:   cfg.Lifecycle.TakeProfitPct,
		PartialFraction: cfg.Lifecycle.PartialFraction,
		MaxHoldingDays:  cfg.Lifecycle.MaxHoldingDays,
		HoldingMode:     lifecycle.HoldingMode(cfg.Lifecycle.HoldingDayMode),
	}
}

// initializeCache returns nil when the decision cache is disabled
func initializeCache(ctx context.Context, cfg *store.Config) *decision.Cache {
	if !cfg.DecisionCache.Enabled {
		return nil
	}
	c, err := decision.NewCache(int64(cfg.DecisionCache.MaxEntries), time.Duration(cfg.DecisionCache.TTLSeconds)*time.Second)
	if err != nil {
		logger.Warn(ctx, "Decision cache disabled", "error", err)
		return nil
	}
	return c
}

// initializeEngine builds the engine and returns it both raw (for marks) and
// wrapped with observability
func initializeEngine(cfg *store.Config, d engine.Deps) (*engine.Engine, interfaces.Engine) {
	eng := engine.New(engine.Config{
		BarsLookback:  cfg.BarsLookback,
		MacroTag:      cfg.MacroTag,
		EventLookback: time.Duration(cfg.Sentiment.MacroWindowHours * float64(time.Hour)),
	}, d)
	return eng, engineobs.Wrap(eng)
}

// initializeEOD wraps the EOD summarizer with observability
func initializeEOD(cfg *store.Config, l *ledger.Ledger) (interfaces.EodSummarizer, error) {
	loc, err := time.LoadLocation(cfg.EOD.TimeZone)
	if err != nil {
		return nil, err
	}
	return eodobs.Wrap(eod.NewSummarizer(l.Store(), cfg.Infra.LogDir, loc, cfg.CloseOffset())), nil
}

// initializeHTTP builds the API server; it is not started here
func initializeHTTP(cfg *store.Config, raw *engine.Engine, eng interfaces.Engine, l *ledger.Ledger, hub *publish.WSHub) *http.Server {
	srv := api.New(eng, l, raw, hub.HandleWS, cfg.Watchlist)
	return &http.Server{
		Addr:         cfg.Infra.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
