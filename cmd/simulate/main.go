package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/binanceclient"
	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/allocation"
	"tradeEvaluator/internal/app"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/evaluation"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

func main() {
	interval := flag.String("interval", "1h", "native bar interval the intents were produced on")
	kind := flag.String("kind", string(domain.KindSetup), "intent kind to simulate: setup or signal")
	breakEven := flag.Float64("breakeven", 0, "move the stop to break-even once the trade's ROI reaches this percentage, 0 disables")
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

	// 3. Open stores and load intents
	stores, err := app.OpenStores(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open stores: %v", err)
	}
	defer stores.Close()

	symbol := domain.Symbol{Name: cfg.Symbol, Exchange: cfg.Exchange, Interval: *interval}
	intents, err := stores.Intents.FindIntents(ctx, symbol, domain.IntentKind(*kind))
	if err != nil {
		appLogger.Error(ctx, err, "Error loading intents")
		return
	}
	appLogger.Info(ctx, "Loaded intents", map[string]interface{}{"count": len(intents), "kind": *kind})

	// 4. Optional real sizing against the account balance
	asset := allocate(ctx, cfg, appLogger)

	// 5. Simulate
	tester, err := app.NewTesterFromConfig(cfg, stores, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize tester")
		return
	}
	var newActions func() []evaluation.TradeAction
	if *breakEven > 0 {
		newActions = func() []evaluation.TradeAction {
			return []evaluation.TradeAction{&evaluation.BreakEvenStop{TriggerROI: *breakEven}}
		}
	}
	simulations, err := tester.Simulate(ctx, intents, newActions)
	if err != nil {
		appLogger.Error(ctx, err, "Simulation failed")
		return
	}

	printSimulations(simulations, asset)
}

// allocate reserves the configured amount of the quote asset. Sizing is skipped
// when no amount is configured or the balance cannot be read.
func allocate(ctx context.Context, cfg *config.Config, appLogger ports.Logger) *allocation.AllocatedAsset {
	if !cfg.AllocationAmount.IsPositive() {
		return nil
	}
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Warn(ctx, "Binance client unavailable, sizing disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	asset, err := allocation.NewAllocatedAsset(ctx, client, cfg.QuoteAsset, cfg.AllocationAmount)
	if err != nil {
		appLogger.Warn(ctx, "Allocation failed, sizing disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	appLogger.Info(ctx, "Allocated asset", map[string]interface{}{"asset": asset.Asset(), "amount": asset.Amount().String()})
	return asset
}

func printSimulations(simulations []app.Simulation, asset *allocation.AllocatedAsset) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Entry\tExit\tSide\tEntryDelay\tExitKind\tROI\tMaxReward\tMaxRisk\tSize\t")

	var total float64
	for _, s := range simulations {
		status := s.Status
		position := status.Position()
		if position == nil {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t-\t-\t-\t-\t-\t\n", s.Entry.ID, s.Exit.ID, s.Entry.Side, "never")
			continue
		}

		roi := "open"
		if !position.IsOpen() {
			if v, err := position.ExitROI(); err == nil {
				roi = fmt.Sprintf("%.2f", v)
				total += v
			}
		}
		if status.IsAmbiguous() {
			roi = "ambiguous"
		}

		size := fmt.Sprintf("%.2f", position.TotalSize())
		if asset != nil {
			if quantity, err := asset.RealSize(position.TotalSize()); err == nil {
				size = fmt.Sprintf("%s %s", quantity.StringFixed(2), asset.Asset())
			}
		}

		tracker := status.RiskReward()
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t\n",
			s.Entry.ID, s.Exit.ID, s.Entry.Side,
			utils.ElapsedTime(position.EntryTime().Sub(s.Entry.PriceDate)), position.ExitKind(), roi,
			tracker.MaxReward(), tracker.MaxRisk(), size)
	}
	w.Flush()
	fmt.Printf("\nTrades: %d, total ROI: %.2f\n", len(simulations), total)
}
