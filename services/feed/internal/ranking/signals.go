// Package ranking scores feed candidates and materializes ranked feeds.
package ranking

import (
	"math"
	"time"
)

// DefaultTau is the freshness decay constant in hours, chosen so a 24-hour-old
// post scores approximately 0.5.
const DefaultTau = 34.6

// followBoost and interactionBoost feed the deep-model fallback heuristic.
const (
	followBoost         = 0.2
	interactionBoost    = 0.05
	maxInteractionBoost = 0.25
)

// Freshness returns exp(-age_hours / tau), in (0, 1].
func Freshness(age time.Duration, tau float64) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Hours() / tau)
}

// squash maps a non-negative rate onto [0, 1) with a logistic curve centered
// so zero activity scores zero.
func squash(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return 2/(1+math.Exp(-x)) - 1
}

// EngagementWeights weight the raw interaction counts.
type EngagementWeights struct {
	Like    float64
	Comment float64
	Share   float64
}

// DefaultEngagementWeights mirror the relative effort of each interaction.
func DefaultEngagementWeights() EngagementWeights {
	return EngagementWeights{Like: 1.0, Comment: 2.0, Share: 3.0}
}

// Engagement is the weighted interaction rate per hour of age, squashed to
// [0, 1). The +1 keeps brand-new posts from dividing by zero.
func Engagement(likes, comments, shares int64, age time.Duration, w EngagementWeights) float64 {
	if age < 0 {
		age = 0
	}
	raw := w.Like*float64(likes) + w.Comment*float64(comments) + w.Share*float64(shares)
	return squash(raw / (age.Hours() + 1))
}

// Affinity estimates follow-graph proximity: a follow contributes a fixed
// base and past interactions with the author add on top, clamped to [0, 1].
func Affinity(followed bool, interactions int64) float64 {
	score := 0.0
	if followed {
		score += 0.5
	}
	score += float64(interactions) * 0.1
	return Clamp01(score)
}

// DeepModelFallback is the heuristic used when no model is configured:
// the engagement signal plus a follow boost and an interaction boost,
// clamped to [0, 1].
func DeepModelFallback(engagement float64, followed bool, interactions int64) float64 {
	score := engagement
	if followed {
		score += followBoost
	}
	boost := float64(interactions) * interactionBoost
	if boost > maxInteractionBoost {
		boost = maxInteractionBoost
	}
	return Clamp01(score + boost)
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
