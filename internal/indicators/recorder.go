package indicators

import (
	"context"
	"fmt"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// Recorder stores indicator lines as the save points of intent bindings.
type Recorder struct {
	bindings   ports.BindingRepository
	savePoints ports.SavePointRepository
	logger     ports.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(bindings ports.BindingRepository, savePoints ports.SavePointRepository, logger ports.Logger) *Recorder {
	return &Recorder{bindings: bindings, savePoints: savePoints, logger: logger}
}

// Record computes ind over bars and stores it under the binding named after
// the indicator for field. It returns the registered binding.
func (r *Recorder) Record(ctx context.Context, ind Indicator, field domain.PriceField, bars []*domain.Bar) (domain.Binding, error) {
	points, err := SavePoints(ind, bars)
	if err != nil {
		return domain.Binding{}, err
	}

	binding, err := r.bindings.SaveBinding(ctx, domain.Binding{Name: ind.Name(), Field: field})
	if err != nil {
		return domain.Binding{}, fmt.Errorf("failed to register binding %s: %w", ind.Name(), err)
	}
	if err := r.savePoints.SaveSavePoints(ctx, binding, points); err != nil {
		return domain.Binding{}, fmt.Errorf("failed to save %s points: %w", ind.Name(), err)
	}

	r.logger.Info(ctx, "Indicator recorded", map[string]interface{}{
		"binding": binding.Name,
		"field":   binding.Field,
		"points":  len(points),
	})
	return binding, nil
}
