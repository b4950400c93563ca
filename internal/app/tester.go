package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradeEvaluator/internal/analytics"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/evaluation"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

// Result is the outcome of one tester run.
type Result struct {
	RunID       string
	Evaluations []*domain.Evaluation
	Summary     *domain.Summary
}

// Simulation is one entry/exit pair replayed through a TradeLoop.
type Simulation struct {
	Entry  *domain.TradeIntent
	Exit   *domain.TradeIntent
	Status *evaluation.TradeStatus
}

// Tester pairs a symbol's intents into trades, evaluates them and summarizes the results.
type Tester struct {
	bars        ports.BarRepository
	savePoints  ports.SavePointRepository
	intents     ports.IntentRepository
	evaluations ports.EvaluationRepository
	evaluator   *evaluation.Evaluator
	summarizer  *analytics.Summarizer
	loopConfig  evaluation.LoopConfig
	logger      ports.Logger
	newRunID    func() string
}

// TesterConfig holds the tester's collaborators and settings.
type TesterConfig struct {
	Bars        ports.BarRepository
	SavePoints  ports.SavePointRepository
	Intents     ports.IntentRepository
	Evaluations ports.EvaluationRepository
	Evaluator   evaluation.EvaluatorConfig
	Loop        evaluation.LoopConfig
	Ambiguity   analytics.AmbiguityPolicy
	Logger      ports.Logger
}

// NewTester creates a tester.
func NewTester(cfg TesterConfig) (*Tester, error) {
	if cfg.Bars == nil || cfg.SavePoints == nil || cfg.Intents == nil || cfg.Evaluations == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Tester", ports.ErrInvalidArgument)
	}
	return &Tester{
		bars:        cfg.Bars,
		savePoints:  cfg.SavePoints,
		intents:     cfg.Intents,
		evaluations: cfg.Evaluations,
		evaluator:   evaluation.NewEvaluator(cfg.Evaluator, cfg.Bars, cfg.SavePoints, cfg.Evaluations, cfg.Logger),
		summarizer:  analytics.NewSummarizer(cfg.Ambiguity),
		loopConfig:  cfg.Loop,
		logger:      cfg.Logger,
		newRunID:    func() string { return uuid.NewString() },
	}, nil
}

// Run evaluates and summarizes the stored intents of symbol and kind.
func (t *Tester) Run(ctx context.Context, symbol domain.Symbol, kind domain.IntentKind) (*Result, error) {
	intents, err := t.intents.FindIntents(ctx, symbol, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s intents for %s: %w", kind, symbol.Name, err)
	}
	return t.PairEvaluateSummarize(ctx, intents)
}

// Pair walks intents in order and pairs the current entry with the next intent
// on the opposite side. Both must be older than the last bar. The exit of one
// pair is the entry of the next.
func (t *Tester) Pair(ctx context.Context, intents []*domain.TradeIntent) ([][2]*domain.TradeIntent, error) {
	if len(intents) == 0 {
		return nil, nil
	}
	last, err := t.bars.LastBar(ctx, intents[0].Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to find last bar: %w", err)
	}

	var pairs [][2]*domain.TradeIntent
	var entry *domain.TradeIntent
	for _, intent := range intents {
		if entry == nil {
			entry = intent
			continue
		}
		if entry.Side != intent.Side &&
			entry.Timestamp.Before(last.OpenTime) &&
			intent.Timestamp.Before(last.OpenTime) {
			pairs = append(pairs, [2]*domain.TradeIntent{entry, intent})
			entry = intent
		}
	}
	return pairs, nil
}

// PairEvaluateSummarize evaluates every pair of intents and summarizes the evaluations.
func (t *Tester) PairEvaluateSummarize(ctx context.Context, intents []*domain.TradeIntent) (*Result, error) {
	runID := t.newRunID()
	started := time.Now()

	pairs, err := t.Pair(ctx, intents)
	if err != nil {
		return nil, err
	}

	evaluations := make([]*domain.Evaluation, 0, len(pairs))
	for _, pair := range pairs {
		e, err := t.evaluator.Evaluate(ctx, pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate intents %d -> %d: %w", pair[0].ID, pair[1].ID, err)
		}
		evaluations = append(evaluations, e)
	}

	// Later evaluations backfill the exit of earlier ones.
	evaluations, err = t.freshen(ctx, evaluations)
	if err != nil {
		return nil, err
	}

	summary := t.summarizer.Summarize(runID, evaluations)
	t.logger.Info(ctx, "Evaluation run completed", map[string]interface{}{
		"runID":     runID,
		"intents":   len(intents),
		"trades":    len(evaluations),
		"profit":    summary.Profit,
		"loss":      summary.Loss,
		"ambiguous": summary.Ambiguous,
		"roi":       summary.ROI,
		"elapsed":   utils.ElapsedTime(time.Since(started)),
	})

	return &Result{RunID: runID, Evaluations: evaluations, Summary: summary}, nil
}

func (t *Tester) freshen(ctx context.Context, evaluations []*domain.Evaluation) ([]*domain.Evaluation, error) {
	fresh := make([]*domain.Evaluation, 0, len(evaluations))
	for _, e := range evaluations {
		stored, err := t.evaluations.FindEvaluationsWithExit(ctx, e.Type, e.ExitID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload evaluation %d: %w", e.ID, err)
		}
		current := e
		for _, s := range stored {
			if s.EntryID == e.EntryID {
				current = s
				break
			}
		}
		fresh = append(fresh, current)
	}
	return fresh, nil
}

// Simulate replays every intent pair bar by bar on the symbol's native interval.
// Trade actions hold per-trade state, so newActions is called once per pair; it may be nil.
func (t *Tester) Simulate(ctx context.Context, intents []*domain.TradeIntent, newActions func() []evaluation.TradeAction) ([]Simulation, error) {
	pairs, err := t.Pair(ctx, intents)
	if err != nil {
		return nil, err
	}

	simulations := make([]Simulation, 0, len(pairs))
	for _, pair := range pairs {
		entry, exit := pair[0], pair[1]
		var actions []evaluation.TradeAction
		if newActions != nil {
			actions = newActions()
		}
		loop, err := evaluation.NewTradeLoop(ctx, entry, entry.Symbol, t.loopConfig, t.bars, t.savePoints, t.logger, actions...)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare loop for intent %d: %w", entry.ID, err)
		}
		status, err := loop.RunToExit(ctx, exit)
		if err != nil {
			return nil, fmt.Errorf("failed to simulate intents %d -> %d: %w", entry.ID, exit.ID, err)
		}
		simulations = append(simulations, Simulation{Entry: entry, Exit: exit, Status: status})
	}
	return simulations, nil
}
