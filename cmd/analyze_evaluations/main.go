package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/analytics"
	"tradeEvaluator/internal/app"
	"tradeEvaluator/internal/domain"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
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

	policies := []analytics.AmbiguityPolicy{analytics.ExcludeAmbiguous, analytics.IncludeAmbiguous}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Kind\tAmbiguity\tTotal\tAmbiguous\tFailed\tProfit\tLoss\tSuccess%\tROI\tAvgROI\tRR\tMaxDD\t")

	byKind := make(map[domain.IntentKind][]*domain.Evaluation)
	for _, kind := range []domain.IntentKind{domain.KindSetup, domain.KindSignal} {
		evaluations, err := stores.Evaluations.FindEvaluations(ctx, cfg.Symbol, kind)
		if err != nil {
			appLogger.Error(ctx, err, "Error loading evaluations", map[string]interface{}{"kind": kind})
			continue
		}
		byKind[kind] = evaluations

		for _, policy := range policies {
			s := analytics.NewSummarizer(policy).Summarize(uuid.NewString(), evaluations)
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
				kind, policy, s.Total, s.Ambiguous, s.Failed, s.Profit, s.Loss,
				s.SuccessRatio*100, s.ROI, s.AvgROI, s.RiskRewardRatio, s.MaxDrawdown)
		}
	}
	w.Flush()

	fmt.Println("\n## Exit Analysis")
	for _, kind := range []domain.IntentKind{domain.KindSetup, domain.KindSignal} {
		analyzeExits(kind, byKind[kind])
	}
}

// exitReason classifies how an evaluation's exit was resolved.
func exitReason(e *domain.Evaluation) string {
	switch {
	case !e.IsEntryPriceValid:
		return "not entered"
	case e.IsAmbiguous:
		return "ambiguous"
	case e.IsStopped:
		return "stopped"
	case e.IsClosed:
		return "closed"
	case e.IsExitPriceValid:
		return "next entry"
	default:
		return "open"
	}
}

// analyzeExits prints realized ROI per exit reason.
func analyzeExits(kind domain.IntentKind, evaluations []*domain.Evaluation) {
	if len(evaluations) == 0 {
		return
	}

	counts := make(map[string]int)
	roi := make(map[string]float64)
	for _, e := range evaluations {
		reason := exitReason(e)
		counts[reason]++
		if e.RealizedROI != nil {
			roi[reason] += *e.RealizedROI
		}
	}

	fmt.Printf("\nKind: %s\n", kind)
	fmt.Println("Exit\tCount\tTotal ROI\tAvg ROI")

	// Sort reasons for consistent output
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		count := counts[reason]
		fmt.Printf("%s\t%d\t%.2f\t%.2f\n", reason, count, roi[reason], roi[reason]/float64(count))
	}
}
