package ranking

import (
	"fmt"
	"math"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// weightTolerance is how far the weight sum may drift from 1.0 before the
// configuration is rejected.
const weightTolerance = 1e-6

// Weights blend the five signals into the composite score.
type Weights struct {
	Freshness  float64
	Completion float64
	Engagement float64
	Affinity   float64
	DeepModel  float64
}

// DefaultWeights is the blend used when nothing is configured.
func DefaultWeights() Weights {
	return Weights{
		Freshness:  0.25,
		Completion: 0.10,
		Engagement: 0.25,
		Affinity:   0.20,
		DeepModel:  0.20,
	}
}

// Validate rejects negative weights and blends that do not sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"freshness":  w.Freshness,
		"completion": w.Completion,
		"engagement": w.Engagement,
		"affinity":   w.Affinity,
		"deep_model": w.DeepModel,
	} {
		if v < 0 {
			return apperrors.InvalidInput(fmt.Sprintf("ranking weight %s must not be negative", name))
		}
	}

	sum := w.Freshness + w.Completion + w.Engagement + w.Affinity + w.DeepModel
	if math.Abs(sum-1.0) > weightTolerance {
		return apperrors.InvalidInput(fmt.Sprintf("ranking weights must sum to 1.0, got %.6f", sum))
	}
	return nil
}

// WithoutCompletion folds the completion weight into the remaining signals,
// preserving their proportions and the 1.0 sum. Used while no watch-progress
// source feeds the completion signal, so a structurally-zero input does not
// deflate every composite score.
func (w Weights) WithoutCompletion() Weights {
	rest := w.Freshness + w.Engagement + w.Affinity + w.DeepModel
	if w.Completion == 0 || rest <= 0 {
		return w
	}
	scale := (rest + w.Completion) / rest
	return Weights{
		Freshness:  w.Freshness * scale,
		Engagement: w.Engagement * scale,
		Affinity:   w.Affinity * scale,
		DeepModel:  w.DeepModel * scale,
	}
}

// Signals are the per-(user, post) inputs to the composite score, each in
// [0, 1].
type Signals struct {
	Freshness  float64
	Completion float64
	Engagement float64
	Affinity   float64
	DeepModel  float64
}

// Composite is the weighted sum of the signals.
func Composite(s Signals, w Weights) float64 {
	return w.Freshness*s.Freshness +
		w.Completion*s.Completion +
		w.Engagement*s.Engagement +
		w.Affinity*s.Affinity +
		w.DeepModel*s.DeepModel
}
