package ranking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// --- Freshness ---

func TestFreshness_DayOldScoresAboutHalf(t *testing.T) {
	got := Freshness(24*time.Hour, DefaultTau)
	assert.InDelta(t, 0.5, got, 0.01)
}

func TestFreshness_NewPostScoresOne(t *testing.T) {
	assert.InDelta(t, 1.0, Freshness(0, DefaultTau), 1e-9)
}

func TestFreshness_NegativeAgeClamped(t *testing.T) {
	assert.InDelta(t, 1.0, Freshness(-time.Hour, DefaultTau), 1e-9)
}

func TestFreshness_Monotonic(t *testing.T) {
	prev := 1.1
	for _, h := range []int{0, 1, 6, 24, 72, 240} {
		v := Freshness(time.Duration(h)*time.Hour, DefaultTau)
		assert.Less(t, v, prev, "freshness must decay with age")
		prev = v
	}
}

// --- Engagement ---

func TestEngagement_ZeroActivityScoresZero(t *testing.T) {
	assert.Zero(t, Engagement(0, 0, 0, time.Hour, DefaultEngagementWeights()))
}

func TestEngagement_InUnitInterval(t *testing.T) {
	v := Engagement(1_000_000, 500_000, 100_000, time.Hour, DefaultEngagementWeights())
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestEngagement_OlderPostScoresLowerAtSameCounts(t *testing.T) {
	w := DefaultEngagementWeights()
	young := Engagement(10, 2, 1, time.Hour, w)
	old := Engagement(10, 2, 1, 48*time.Hour, w)
	assert.Greater(t, young, old)
}

func TestEngagement_SharesWeighMoreThanLikes(t *testing.T) {
	w := DefaultEngagementWeights()
	likes := Engagement(3, 0, 0, time.Hour, w)
	shares := Engagement(0, 0, 3, time.Hour, w)
	assert.Greater(t, shares, likes)
}

// --- Affinity / deep-model fallback ---

func TestAffinity(t *testing.T) {
	assert.Zero(t, Affinity(false, 0))
	assert.InDelta(t, 0.5, Affinity(true, 0), 1e-9)
	assert.InDelta(t, 0.7, Affinity(true, 2), 1e-9)
	assert.Equal(t, 1.0, Affinity(true, 100), "clamped at 1")
}

func TestDeepModelFallback_Clamped(t *testing.T) {
	v := DeepModelFallback(0.95, true, 50)
	assert.Equal(t, 1.0, v)

	v = DeepModelFallback(0.1, false, 0)
	assert.InDelta(t, 0.1, v, 1e-9)
}

func TestDeepModelFallback_FollowBoost(t *testing.T) {
	base := DeepModelFallback(0.3, false, 0)
	followed := DeepModelFallback(0.3, true, 0)
	assert.InDelta(t, followBoost, followed-base, 1e-9)
}

// --- Weights ---

func TestWeights_DefaultValid(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
}

func TestWeights_RejectsBadSum(t *testing.T) {
	w := DefaultWeights()
	w.Freshness += 0.1

	err := w.Validate()
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestWeights_RejectsNegative(t *testing.T) {
	w := Weights{Freshness: -0.2, Completion: 0.4, Engagement: 0.4, Affinity: 0.2, DeepModel: 0.2}
	err := w.Validate()
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestComposite_WeightedSum(t *testing.T) {
	s := Signals{Freshness: 1, Completion: 0, Engagement: 0.5, Affinity: 0, DeepModel: 0}
	w := Weights{Freshness: 0.5, Engagement: 0.5}
	assert.InDelta(t, 0.75, Composite(s, w), 1e-9)
}
