// cmd/backtest replays archived candles from SQLite through the trading
// loop with the paper gateway and prints every emitted signal.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/candles.db --symbol=BTCUSDT --interval=5m --rules=RSI
//	go run ./cmd/backtest --fetch=1000   # pull recent Binance klines into the archive first
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"tradeloop/internal/execution"
	"tradeloop/internal/indicator"
	"tradeloop/internal/logger"
	"tradeloop/internal/loop"
	"tradeloop/internal/marketdata/binance"
	"tradeloop/internal/marketdata/replay"
	"tradeloop/internal/model"
	"tradeloop/internal/strategy"
	sqlitestore "tradeloop/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/candles.db", "Path to SQLite database")
	symbol := flag.String("symbol", "BTCUSDT", "Instrument to replay")
	ivStr := flag.String("interval", "5m", "Candle interval")
	limit := flag.Int("limit", loop.DefaultFetchLimit, "Fetch window per cycle")
	indStr := flag.String("indicators", "SMA,RSI", "Comma-separated indicators (SMA,EMA,RSI,MACD)")
	ruleStr := flag.String("rules", "RSI", "Comma-separated rules (RSI,MACD)")
	qtyStr := flag.String("qty", "1", "Order quantity")
	edge := flag.Bool("edge", false, "Fire the RSI rule only on threshold crossings")
	slippage := flag.Int64("slippage", 0, "Paper slippage in basis points")
	start := flag.Int("from", 0, "Candles revealed before the first cycle")
	fetch := flag.Int("fetch", 0, "Fetch this many recent Binance klines into the archive first (max 1000)")
	flag.Parse()

	logger.Init("backtest", slog.LevelWarn)

	iv, err := model.ParseInterval(*ivStr)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	qty, err := decimal.NewFromString(*qtyStr)
	if err != nil {
		log.Fatalf("[backtest] invalid qty %q: %v", *qtyStr, err)
	}

	cfg := loop.DefaultConfig()
	cfg.Instrument = strings.ToUpper(*symbol)
	cfg.Interval = iv
	cfg.FetchLimit = *limit
	cfg.Quantity = qty
	cfg.AutoTrade = true
	cfg.Signals.RSIEdgeTriggered = *edge
	if cfg.Indicators, err = parseList(*indStr, indicator.ParseName); err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	if cfg.Rules, err = parseList(*ruleStr, strategy.ParseRule); err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	archive, err := sqlitestore.Open(sqlitestore.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer archive.Close()

	if *fetch > 0 {
		s, err := binance.New(binance.Config{}).FetchCandles(ctx, cfg.Instrument, iv, min(*fetch, binance.MaxLimit))
		if err != nil {
			log.Fatalf("[backtest] fetch failed: %v", err)
		}
		if err := archive.SaveSeries(ctx, s); err != nil {
			log.Fatalf("[backtest] archive failed: %v", err)
		}
		log.Printf("[backtest] archived %d %s/%s candles", s.Len(), cfg.Instrument, iv)
	}

	rp, err := replay.FromArchive(ctx, archive, cfg.Instrument, iv, *start)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	paper := execution.NewPaperGateway(*slippage, rp.Quote)

	l, err := loop.New(cfg, rp, execution.NewExecutor("paper", paper))
	if err != nil {
		log.Fatalf("[backtest] loop init failed: %v", err)
	}

	var cycles, signals, issues int
	var lastClose float64
	for rp.Remaining() > 0 && ctx.Err() == nil {
		c := l.RunCycle(ctx)
		cycles++
		if !c.OK() {
			issues++
		}
		if n := len(c.Tail); n > 0 {
			row := c.Tail[n-1]
			lastClose = row.Close
			for _, s := range c.Signals {
				signals++
				fmt.Printf("  [%s] close=%-12.4f %s\n", row.TS.Format("2006-01-02 15:04"), row.Close, s)
			}
		}
	}

	var buys, sells int
	for _, f := range paper.Fills() {
		if f.Request.Side == model.SideBuy {
			buys++
		} else {
			sells++
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Instrument:        %-16s ║\n", cfg.Instrument+" "+iv.String())
	fmt.Printf("║  Cycles:            %-16d ║\n", cycles)
	fmt.Printf("║  Cycles w/ issues:  %-16d ║\n", issues)
	fmt.Printf("║  Signals:           %-16d ║\n", signals)
	fmt.Printf("║  Paper buys/sells:  %-16s ║\n", fmt.Sprintf("%d / %d", buys, sells))
	fmt.Printf("║  Last close:        %-16.4f ║\n", lastClose)
	fmt.Println("╚══════════════════════════════════════╝")
}

func parseList[T any](s string, parse func(string) (T, error)) ([]T, error) {
	var out []T
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		v, err := parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
