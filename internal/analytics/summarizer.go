package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/evaluation"
	"tradeEvaluator/internal/risk"
	"tradeEvaluator/internal/utils"
)

// AmbiguityPolicy decides how evaluations whose stop and close traded in the
// same bar enter a summary.
type AmbiguityPolicy string

const (
	// ExcludeAmbiguous counts ambiguous evaluations but leaves them out of every ratio.
	ExcludeAmbiguous AmbiguityPolicy = "exclude"
	// IncludeAmbiguous books ambiguous evaluations as stopped out.
	IncludeAmbiguous AmbiguityPolicy = "include"
)

// ParseAmbiguityPolicy parses "exclude" or "include" (case-insensitive).
func ParseAmbiguityPolicy(v string) (AmbiguityPolicy, error) {
	switch AmbiguityPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", ExcludeAmbiguous:
		return ExcludeAmbiguous, nil
	case IncludeAmbiguous:
		return IncludeAmbiguous, nil
	default:
		return "", fmt.Errorf("unknown ambiguity policy %q", v)
	}
}

// Summarizer aggregates evaluations into a domain.Summary.
type Summarizer struct {
	policy AmbiguityPolicy
}

// NewSummarizer creates a summarizer applying policy to ambiguous evaluations.
func NewSummarizer(policy AmbiguityPolicy) *Summarizer {
	if policy == "" {
		policy = ExcludeAmbiguous
	}
	return &Summarizer{policy: policy}
}

// Policy returns the ambiguity policy in use.
func (s *Summarizer) Policy() AmbiguityPolicy {
	return s.policy
}

// realized is one evaluation that contributes a realized ROI.
type realized struct {
	entry, exit time.Time
	roi         float64
}

// Summarize aggregates evaluations. The input slice is not modified.
func (s *Summarizer) Summarize(runID string, evaluations []*domain.Evaluation) *domain.Summary {
	summary := &domain.Summary{
		RunID:       runID,
		EquityCurve: make([]domain.EquityPoint, 0),
	}

	var trades []realized
	var highestSum, lowestSum float64
	var highestCount, lowestCount int

	for _, e := range evaluations {
		if e == nil {
			continue
		}
		summary.Total++

		if e.IsAmbiguous {
			summary.Ambiguous++
			if s.policy == ExcludeAmbiguous {
				continue
			}
		}
		if !e.IsEntryPriceValid {
			summary.Failed++
			continue
		}

		if e.HighestROI != nil {
			highestSum += *e.HighestROI
			highestCount++
		}
		if e.LowestROI != nil {
			lowestSum += *e.LowestROI
			lowestCount++
		}

		roi, ok := s.realizedROI(e)
		if !ok {
			continue
		}
		trades = append(trades, realized{entry: e.EntryTimestamp, exit: e.ExitTimestamp, roi: roi})
	}

	if highestCount > 0 {
		summary.AvgHighestROI = utils.Round(highestSum/float64(highestCount), 2)
	}
	if lowestCount > 0 {
		summary.AvgLowestROI = utils.Round(lowestSum/float64(lowestCount), 2)
	}
	if len(trades) == 0 {
		return summary
	}

	// Equity and streaks follow exit order.
	sort.SliceStable(trades, func(i, j int) bool {
		return exitOrEntry(trades[i]).Before(exitOrEntry(trades[j]))
	})

	var equity, peak float64
	var consecutiveWins, consecutiveLosses int
	var winSum, lossSum float64
	var totalDuration time.Duration
	var durations int

	for _, t := range trades {
		equity += t.roi
		if t.roi > 0 {
			summary.Profit++
			winSum += t.roi
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			summary.Loss++
			lossSum += t.roi
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > summary.MaxConsecutiveWins {
			summary.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > summary.MaxConsecutiveLosses {
			summary.MaxConsecutiveLosses = consecutiveLosses
		}

		if equity > peak {
			peak = equity
		}
		drawdown := peak - equity
		if drawdown > summary.MaxDrawdown {
			summary.MaxDrawdown = drawdown
		}
		summary.EquityCurve = append(summary.EquityCurve, domain.EquityPoint{
			Time:     exitOrEntry(t),
			Value:    utils.Round(equity, 2),
			Drawdown: utils.Round(drawdown, 2),
		})

		if !t.entry.IsZero() && t.exit.After(t.entry) {
			totalDuration += t.exit.Sub(t.entry)
			durations++
		}
	}

	count := float64(len(trades))
	summary.ROI = utils.Round(equity, 2)
	summary.AvgROI = utils.Round(equity/count, 2)
	summary.SuccessRatio = utils.Round(float64(summary.Profit)/count, 4)
	summary.MaxDrawdown = utils.Round(summary.MaxDrawdown, 2)
	if durations > 0 {
		summary.AverageTradeDuration = totalDuration / time.Duration(durations)
	}
	if summary.Profit > 0 && summary.Loss > 0 && lossSum != 0 {
		avgWin := winSum / float64(summary.Profit)
		avgLoss := lossSum / float64(summary.Loss)
		summary.RiskRewardRatio = utils.Round(risk.Ratio(avgWin, avgLoss), 2)
	}

	return summary
}

// realizedROI returns the ROI an evaluation contributes. Ambiguous
// evaluations only reach here under IncludeAmbiguous and are booked at the stop.
func (s *Summarizer) realizedROI(e *domain.Evaluation) (float64, bool) {
	if e.IsAmbiguous {
		if e.EntryPrice == nil || e.StopPrice == nil || *e.EntryPrice == 0 {
			return 0, false
		}
		return evaluation.CalcROI(e.Side, *e.EntryPrice, *e.StopPrice), true
	}
	if e.RealizedROI == nil {
		return 0, false
	}
	return *e.RealizedROI, true
}

func exitOrEntry(t realized) time.Time {
	if t.exit.IsZero() {
		return t.entry
	}
	return t.exit
}
