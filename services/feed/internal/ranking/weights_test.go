package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_WithoutCompletion_RedistributesProportionally(t *testing.T) {
	got := DefaultWeights().WithoutCompletion()

	assert.Zero(t, got.Completion)
	require.NoError(t, got.Validate(), "folded blend must still sum to 1.0")

	// 0.25 : 0.25 : 0.20 : 0.20 proportions survive the fold.
	assert.InDelta(t, 0.25/0.90, got.Freshness, 1e-9)
	assert.InDelta(t, 0.25/0.90, got.Engagement, 1e-9)
	assert.InDelta(t, 0.20/0.90, got.Affinity, 1e-9)
	assert.InDelta(t, 0.20/0.90, got.DeepModel, 1e-9)
}

func TestWeights_WithoutCompletion_NoopWhenCompletionZero(t *testing.T) {
	w := Weights{Freshness: 0.5, Engagement: 0.5}
	assert.Equal(t, w, w.WithoutCompletion())
}

func TestWeights_WithoutCompletion_RaisesScoreOfLiveSignals(t *testing.T) {
	// A candidate with no completion data scores higher under the folded
	// blend: the dead weight no longer drags the composite down.
	s := Signals{Freshness: 0.8, Engagement: 0.6, Affinity: 0.4, DeepModel: 0.5}

	base := Composite(s, DefaultWeights())
	folded := Composite(s, DefaultWeights().WithoutCompletion())
	assert.Greater(t, folded, base)
}
