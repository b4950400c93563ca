package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/binanceclient"
	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/app"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

func main() {
	interval := flag.String("interval", "1m", "bar interval to fetch")
	months := flag.Int("months", 3, "how many months back to fetch")
	csvOut := flag.String("csv", "", "also write the fetched bars to this CSV file")
	csvIn := flag.String("import", "", "import bars from this CSV file instead of fetching them")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if _, err := utils.IntervalDuration(*interval); err != nil {
		log.Fatalf("FATAL: Invalid interval: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	// 3. Open stores
	stores, err := app.OpenStores(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open stores")
		log.Fatalf("FATAL: Failed to open stores: %v", err)
	}
	defer stores.Close()

	symbol := domain.Symbol{Name: cfg.Symbol, Exchange: cfg.Exchange, Interval: *interval}
	var bars []*domain.Bar
	if *csvIn != "" {
		bars, err = utils.ReadBarsFromCSV(*csvIn)
		if err != nil {
			appLogger.Error(ctx, err, "Error reading CSV", map[string]interface{}{"filename": *csvIn})
			stores.Close()
			log.Fatalf("Error reading CSV: %v", err)
		}
	} else {
		// 4. Initialize Exchange Client (Binance Adapter)
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
			stores.Close()
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		if err := binanceClient.Ping(ctx); err != nil {
			stores.Close()
			log.Fatalf("FATAL: Exchange unreachable: %v", err)
		}
		// The range ends at the exchange clock.
		end, err := binanceClient.GetServerTime(ctx)
		if err != nil {
			stores.Close()
			log.Fatalf("FATAL: Failed to read exchange time: %v", err)
		}
		bars, err = fetch(ctx, binanceClient, symbol, end.AddDate(0, -*months, 0), end, appLogger)
		if err != nil {
			stores.Close()
			log.Fatalf("Error fetching klines: %v", err)
		}
	}

	if err := stores.Bars.SaveBars(ctx, bars); err != nil {
		appLogger.Error(ctx, err, "Error saving bars")
		stores.Close()
		log.Fatalf("Error saving bars: %v", err)
	}
	symbol.LastUpdate = time.Now().UTC()
	if err := stores.Symbols.UpsertSymbol(ctx, symbol); err != nil {
		appLogger.Error(ctx, err, "Error recording symbol update")
	}
	appLogger.Info(ctx, "Bars stored", map[string]interface{}{
		"symbol":   symbol.Name,
		"interval": symbol.Interval,
		"count":    len(bars),
		"store":    cfg.BarStore,
	})

	if *csvOut != "" {
		if err := utils.WriteBarsToCSV(bars, *csvOut); err != nil {
			appLogger.Error(ctx, err, "Error writing CSV")
			return
		}
		appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": *csvOut})
	}
}

func fetch(ctx context.Context, source ports.KlineSource, symbol domain.Symbol, start, end time.Time, appLogger ports.Logger) ([]*domain.Bar, error) {
	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol.Name, symbol.Interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	bars, err := source.GetKlinesRange(ctx, symbol.Name, symbol.Interval, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching klines")
		return nil, err
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(bars)})
	return bars, nil
}
