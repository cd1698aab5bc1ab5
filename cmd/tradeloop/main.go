// cmd/tradeloop runs the trading loop for one instrument: it polls candles,
// computes indicators, evaluates signal rules and, with auto-trade on,
// submits market orders. Cycle reports go to the log, the status API,
// WebSocket clients and, when configured, Redis and alert channels.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"tradeloop/config"
	"tradeloop/internal/api"
	"tradeloop/internal/execution"
	"tradeloop/internal/logger"
	"tradeloop/internal/loop"
	"tradeloop/internal/marketdata/alpacabars"
	"tradeloop/internal/marketdata/binance"
	"tradeloop/internal/metrics"
	"tradeloop/internal/model"
	"tradeloop/internal/notification"
	"tradeloop/internal/report"
	redisstore "tradeloop/internal/store/redis"
	sqlitestore "tradeloop/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[tradeloop] config: %v", err)
	}
	slogger := logger.Init("tradeloop", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[tradeloop] shutdown requested")
		cancel()
	}()

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()

	// Market data
	md, quotes := newMarketData(cfg)

	// Execution
	var gw model.ExecutionGateway
	if cfg.Loop.AutoTrade {
		gw = newGateway(cfg, quotes)
		log.Printf("[tradeloop] auto-trade ON via %s", cfg.Gateway)
	}

	// Candle archive
	var archive *sqlitestore.Archive
	var sqlDB *sql.DB
	if cfg.SQLitePath != "" {
		archive, err = sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[tradeloop] sqlite open failed: %v", err)
		}
		defer archive.Close()
		sqlDB = archive.DB()
		health.EnableSQLite(true)
	}

	// Reporters: history and log are synchronous; network sinks go through
	// the async ring so a slow sink never delays the next cycle.
	history := report.NewHistory(cfg.HistorySize)
	hub := api.NewHub()
	defer hub.Close()

	sinks := report.Multi{hub}
	var rdb goredis.UniversalClient
	if cfg.RedisEnabled {
		pub, err := newPublisher(cfg, m)
		if err != nil {
			log.Printf("[tradeloop] redis disabled: %v", err)
			health.EnableRedis(false)
		} else {
			defer pub.Close()
			rdb = pub.Client()
			health.EnableRedis(true)
			sinks = append(sinks, pub)
		}
	}
	for _, n := range notifiers(cfg) {
		sinks = append(sinks, notification.NewReporter(n))
	}
	async := report.NewAsync(sinks, 256, m.ReportDropped.Inc)
	async.Start(ctx)

	reporters := report.Multi{history, report.NewLogReporter(slogger), async}

	opts := []loop.Option{
		loop.WithReporter(reporters),
		loop.WithMetrics(m),
		loop.WithHealth(health),
		loop.WithLogger(slogger),
	}
	if archive != nil {
		opts = append(opts, loop.WithArchive(archive))
	}
	l, err := loop.New(cfg.Loop, md, gw, opts...)
	if err != nil {
		log.Fatalf("[tradeloop] loop init failed: %v", err)
	}

	health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Loop:     l,
			History:  history,
			Health:   health,
			Hub:      hub,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[tradeloop] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[tradeloop] http server error: %v", err)
		}
	}()

	if err := l.Run(ctx); err != nil {
		log.Printf("[tradeloop] loop error: %v", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[tradeloop] http shutdown error: %v", err)
	}
	async.Wait()
	log.Printf("[tradeloop] stopped after %d cycles (%d reports dropped)", l.Cycles(), async.Dropped())
}

func newMarketData(cfg *config.Config) (model.MarketDataClient, *quoteTracker) {
	var md model.MarketDataClient
	switch cfg.DataProvider {
	case config.ProviderAlpaca:
		md = alpacabars.New(alpacabars.Config{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaDataURL,
		})
	default:
		md = binance.New(binance.Config{BaseURL: cfg.BinanceBaseURL, Timeout: cfg.RequestTimeout()})
	}
	log.Printf("[tradeloop] market data via %s", cfg.DataProvider)
	qt := &quoteTracker{next: md}
	return qt, qt
}

func newGateway(cfg *config.Config, quotes *quoteTracker) model.ExecutionGateway {
	switch cfg.Gateway {
	case config.GatewayBinance:
		return execution.NewExecutor("binance", execution.NewBinanceGateway(execution.BinanceConfig{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			BaseURL:   cfg.BinanceTradeURL,
			Timeout:   cfg.RequestTimeout(),
		}))
	case config.GatewayAlpaca:
		return execution.NewExecutor("alpaca", execution.NewAlpacaGateway(execution.AlpacaConfig{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaTradeURL,
		}))
	default:
		return execution.NewExecutor("paper", execution.NewPaperGateway(cfg.PaperSlippageBps, quotes.Quote))
	}
}

func newPublisher(cfg *config.Config, m *metrics.Metrics) (*redisstore.Publisher, error) {
	pub, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	cb := redisstore.NewBreaker(5, 30*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}
	pub.OnSkip = m.RedisSkippedWrites.Inc
	return pub.WithCircuitBreaker(cb), nil
}

func notifiers(cfg *config.Config) []notification.Notifier {
	var out []notification.Notifier
	if cfg.WebhookURL != "" {
		out = append(out, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" {
		out = append(out, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if len(out) == 0 {
		out = append(out, notification.NewLogNotifier())
	}
	return out
}

// quoteTracker remembers the newest close per instrument so the paper
// gateway fills at the price the signal was computed on.
type quoteTracker struct {
	next model.MarketDataClient

	mu   sync.RWMutex
	last map[string]float64
}

func (q *quoteTracker) FetchCandles(ctx context.Context, instrument string, interval model.Interval, limit int) (model.Series, error) {
	s, err := q.next.FetchCandles(ctx, instrument, interval, limit)
	if err != nil {
		return s, err
	}
	if c, ok := s.Last(); ok {
		q.mu.Lock()
		if q.last == nil {
			q.last = make(map[string]float64)
		}
		q.last[instrument] = c.Close
		q.mu.Unlock()
	}
	return s, nil
}

func (q *quoteTracker) Quote(instrument string) (float64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	px, ok := q.last[instrument]
	return px, ok
}
