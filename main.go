package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"text/tabwriter"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/app"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/utils"
)

func main() {
	interval := flag.String("interval", "1h", "native bar interval the intents were produced on")
	kind := flag.String("kind", string(domain.KindSetup), "intent kind to evaluate: setup or signal")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if _, err := utils.IntervalDuration(*interval); err != nil {
		log.Fatalf("FATAL: Invalid interval: %v", err)
	}
	intentKind := domain.IntentKind(*kind)
	if intentKind != domain.KindSetup && intentKind != domain.KindSignal {
		log.Fatalf("FATAL: Invalid intent kind %q", *kind)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Open stores
	stores, err := app.OpenStores(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open stores")
		log.Fatalf("FATAL: Failed to open stores: %v", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing stores")
		}
	}()

	// 4. Evaluate
	tester, err := app.NewTesterFromConfig(cfg, stores, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize tester")
		log.Fatalf("FATAL: Failed to initialize tester: %v", err)
	}

	symbol := domain.Symbol{Name: cfg.Symbol, Exchange: cfg.Exchange, Interval: *interval}
	result, err := tester.Run(ctx, symbol, intentKind)
	if err != nil {
		appLogger.Error(ctx, err, "Evaluation run failed")
		stores.Close()
		log.Fatalf("FATAL: Evaluation run failed: %v", err)
	}

	printSummary(symbol, intentKind, result)
	appLogger.Info(ctx, "Application finished gracefully.")
}

func printSummary(symbol domain.Symbol, kind domain.IntentKind, result *app.Result) {
	s := result.Summary
	fmt.Printf("Run %s: %s %s %s\n\n", result.RunID, symbol.Name, symbol.Interval, kind)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Total\tAmbiguous\tFailed\tProfit\tLoss\tSuccess%\tROI\tAvgROI\tAvgHigh\tAvgLow\tRR\tMaxDD\t")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
		s.Total, s.Ambiguous, s.Failed, s.Profit, s.Loss,
		s.SuccessRatio*100, s.ROI, s.AvgROI, s.AvgHighestROI, s.AvgLowestROI, s.RiskRewardRatio, s.MaxDrawdown)
	w.Flush()

	fmt.Printf("\nStreaks: %d wins, %d losses. Average trade duration: %s\n",
		s.MaxConsecutiveWins, s.MaxConsecutiveLosses, utils.ElapsedTime(s.AverageTradeDuration))
}
