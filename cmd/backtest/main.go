package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/hadoobidoop/stock-tracker/internal/backtest"
	"github.com/hadoobidoop/stock-tracker/internal/cache"
	"github.com/hadoobidoop/stock-tracker/internal/config"
	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/logging"
	"github.com/hadoobidoop/stock-tracker/internal/market"
	"github.com/hadoobidoop/stock-tracker/internal/strategy"
)

func main() {
	// Values from .env become environment variables for viper to pick up.
	_ = godotenv.Load()

	strategyID := flag.String("strategy", "", "strategy id to run (default: configured active strategy)")
	compare := flag.Bool("compare", false, "run every registered strategy and rank them")
	dataDir := flag.String("data", "", "directory of <TICKER>.csv bar files (overrides config)")
	vix := flag.Float64("vix", 0, "VIX level for the macro snapshot (0 = absent)")
	fearGreed := flag.Float64("fear-greed", 0, "fear & greed index for the macro snapshot (0 = absent)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, running without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	tableCache := cache.NewTableCache(redisClient, cfg.CacheTTL(), logger)

	dir := cfg.Data.Dir
	if *dataDir != "" {
		dir = *dataDir
	}
	barsByTicker, err := market.LoadDir(dir, cfg.Data.Tickers)
	if err != nil {
		log.Fatalf("Failed to load bar data: %v", err)
	}
	if len(barsByTicker) == 0 {
		log.Fatalf("No bar data found in %s", dir)
	}

	calc := indicator.NewCalculator(indicator.DefaultConfig(), logger)
	signature := calc.Config().Signature()
	tables := make(map[string]*market.IndicatorTable, len(barsByTicker))
	for ticker, bars := range barsByTicker {
		if table, ok := tableCache.Get(ctx, ticker, signature); ok {
			tables[ticker] = table
			continue
		}
		table, err := calc.Build(ticker, bars)
		if err != nil {
			log.Fatalf("Failed to build indicator table for %s: %v", ticker, err)
		}
		tables[ticker] = table
		tableCache.Set(ctx, signature, table)
	}
	tableCache.LogStats()

	manager, err := strategy.NewManager(logger)
	if err != nil {
		log.Fatalf("Failed to initialize strategies: %v", err)
	}
	if cfg.Strategies.File != "" {
		extra, err := strategy.LoadConfigs(cfg.Strategies.File)
		if err != nil {
			log.Fatalf("Failed to load strategy file: %v", err)
		}
		for _, sc := range extra {
			if err := manager.Register(sc); err != nil {
				log.Fatalf("Failed to register strategy %s: %v", sc.ID, err)
			}
		}
	}

	macro := market.MacroSnapshot{}
	if *vix > 0 {
		macro[market.MacroVIX] = *vix
	}
	if *fearGreed > 0 {
		macro[market.MacroFearGreedIndex] = *fearGreed
	}

	engine, err := backtest.NewEngine(backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create backtest engine: %v", err)
	}

	if *compare {
		runner := backtest.NewRunner(engine, manager, logger)
		results, err := runner.CompareStrategies(ctx, manager.IDs(), tables, backtest.StaticMacro(macro))
		if err != nil {
			log.Fatalf("Comparison failed: %v", err)
		}
		printComparison(results)
		return
	}

	id := cfg.Strategies.Active
	if *strategyID != "" {
		id = *strategyID
	}
	if err := manager.Switch(id); err != nil {
		log.Fatalf("Unknown strategy %q (registered: %s)", id, strings.Join(manager.IDs(), ", "))
	}
	result, err := engine.Run(ctx, manager.Active(), tables, backtest.StaticMacro(macro))
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}
	printResult(result)
}

func printResult(r *backtest.Result) {
	fmt.Printf("\nStrategy %s  (%s .. %s)\n", r.StrategyID,
		r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Printf("  Initial capital:   %s\n", money(r.InitialCapital))
	fmt.Printf("  Final equity:      %s\n", money(r.FinalEquity))
	fmt.Printf("  Total return:      %7.2f%%\n", r.Metrics.TotalReturnPct*100)
	fmt.Printf("  Annualized return: %7.2f%%\n", r.Metrics.AnnualizedReturnPct*100)
	fmt.Printf("  Sharpe ratio:      %7.2f\n", r.Metrics.SharpeRatio)
	fmt.Printf("  Max drawdown:      %7.2f%%\n", r.Metrics.MaxDrawdownPct*100)
	fmt.Printf("  Trades:            %d (%d wins / %d losses, win rate %.1f%%)\n",
		r.Metrics.TotalTrades, r.Metrics.Wins, r.Metrics.Losses, r.Metrics.WinRate*100)
	if r.Metrics.ProfitFactorUndefined {
		fmt.Printf("  Profit factor:     n/a (no losing trades)\n")
	} else {
		fmt.Printf("  Profit factor:     %7.2f\n", r.Metrics.ProfitFactor)
	}
	fmt.Printf("  Commission paid:   %s\n", money(r.Metrics.TotalCommission))
	if r.Metrics.MissedEntries > 0 {
		fmt.Printf("  Missed entries:    %d\n", r.Metrics.MissedEntries)
	}
}

func printComparison(results map[string]*backtest.Result) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return results[ids[i]].Metrics.TotalReturnPct > results[ids[j]].Metrics.TotalReturnPct
	})
	fmt.Printf("\n%-18s %10s %8s %9s %7s %8s\n", "STRATEGY", "RETURN", "SHARPE", "DRAWDOWN", "TRADES", "WIN RATE")
	for _, id := range ids {
		m := results[id].Metrics
		fmt.Printf("%-18s %9.2f%% %8.2f %8.2f%% %7d %7.1f%%\n",
			id, m.TotalReturnPct*100, m.SharpeRatio, m.MaxDrawdownPct*100, m.TotalTrades, m.WinRate*100)
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func init() {
	// Keep fatal messages on stderr without timestamps doubling up under
	// systemd style collectors.
	log.SetOutput(os.Stderr)
	log.SetFlags(0)
}
