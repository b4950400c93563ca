package main

import (
	"context"
	"flag"
	"log"
	"time"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/app"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/indicators"
	"tradeEvaluator/internal/utils"
)

func main() {
	interval := flag.String("interval", "1h", "bar interval to compute the indicator on")
	spec := flag.String("indicator", "ema:21", "indicator as type:period (sma, ema, rsi, atr)")
	field := flag.String("field", string(domain.FieldStopPrice), "intent field the indicator drives: price, stop_price or close_price")
	months := flag.Int("months", 3, "how many months back to compute")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if _, err := utils.IntervalDuration(*interval); err != nil {
		log.Fatalf("FATAL: Invalid interval: %v", err)
	}
	ind, err := indicators.Parse(*spec)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	priceField := domain.PriceField(*field)
	switch priceField {
	case domain.FieldPrice, domain.FieldStopPrice, domain.FieldClosePrice:
	default:
		log.Fatalf("FATAL: Invalid field %q", *field)
	}

	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open stores: %v", err)
	}
	defer stores.Close()

	symbol := domain.Symbol{Name: cfg.Symbol, Exchange: cfg.Exchange, Interval: *interval}
	end := time.Now().UTC()
	bars, err := stores.Bars.BarsBetween(ctx, symbol, end.AddDate(0, -*months, 0), end)
	if err != nil {
		appLogger.Error(ctx, err, "Error loading bars")
		return
	}

	recorder := indicators.NewRecorder(stores.Bindings, stores.SavePoints, appLogger)
	binding, err := recorder.Record(ctx, ind, priceField, bars)
	if err != nil {
		appLogger.Error(ctx, err, "Error recording indicator")
		return
	}
	appLogger.Info(ctx, "Binding ready", map[string]interface{}{"id": binding.ID, "name": binding.Name, "field": binding.Field})
}
