package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// minDiversifyK is the smallest author-saturation window.
const minDiversifyK = 5

// Candidate is a post considered for a user's feed, together with the raw
// signal inputs gathered from the analytics store.
type Candidate struct {
	PostID       string
	AuthorID     string
	CreatedAt    time.Time
	Likes        int64
	Comments     int64
	Shares       int64
	Completion   float64
	Followed     bool
	Interactions int64
}

// Scored is a candidate with its composite score and final dense rank.
type Scored struct {
	Candidate
	Score float64
	Rank  int
}

// Model scores a candidate with an external model. Implementations must
// return values in [0, 1]; out-of-range outputs are clamped.
type Model interface {
	Score(ctx context.Context, userID string, c Candidate) (float64, error)
}

// Ranker runs the scoring pipeline.
type Ranker struct {
	weights     Weights
	engagement  EngagementWeights
	tau         float64
	model       Model // nil means heuristic fallback
	parallelism int
	diversifyK  int
	now         func() time.Time
}

// RankerOption customizes a Ranker.
type RankerOption func(*Ranker)

// WithModel plugs in an external deep model.
func WithModel(m Model) RankerOption {
	return func(r *Ranker) { r.model = m }
}

// WithParallelism bounds concurrent candidate scoring.
func WithParallelism(n int) RankerOption {
	return func(r *Ranker) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithDiversifyK sets the author-saturation window, floored at 5.
func WithDiversifyK(k int) RankerOption {
	return func(r *Ranker) {
		if k > minDiversifyK {
			r.diversifyK = k
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) RankerOption {
	return func(r *Ranker) { r.now = now }
}

// NewRanker validates the weights and builds a ranking pipeline.
func NewRanker(weights Weights, engagement EngagementWeights, opts ...RankerOption) (*Ranker, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	r := &Ranker{
		weights:     weights,
		engagement:  engagement,
		tau:         DefaultTau,
		parallelism: 8,
		diversifyK:  minDiversifyK,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Rank scores candidates in parallel and returns them ordered with dense
// 1-based ranks. Duplicate post ids collapse to the first occurrence.
func (r *Ranker) Rank(ctx context.Context, userID string, candidates []Candidate) ([]Scored, error) {
	deduped := dedupe(candidates)
	if len(deduped) == 0 {
		return nil, nil
	}

	scored := make([]Scored, len(deduped))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, c := range deduped {
		g.Go(func() error {
			s, err := r.score(gctx, userID, c)
			if err != nil {
				return fmt.Errorf("score post %s: %w", c.PostID, err)
			}
			scored[i] = Scored{Candidate: c, Score: s}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic order: score descending, post id as the tie-break.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].PostID < scored[j].PostID
	})

	scored = diversify(scored, r.diversifyK)

	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// score computes the composite for one candidate.
func (r *Ranker) score(ctx context.Context, userID string, c Candidate) (float64, error) {
	age := r.now().UTC().Sub(c.CreatedAt)

	engagement := Engagement(c.Likes, c.Comments, c.Shares, age, r.engagement)

	var deep float64
	if r.model != nil {
		out, err := r.model.Score(ctx, userID, c)
		if err != nil {
			return 0, err
		}
		deep = Clamp01(out)
	} else {
		deep = DeepModelFallback(engagement, c.Followed, c.Interactions)
	}

	s := Signals{
		Freshness:  Freshness(age, r.tau),
		Completion: Clamp01(c.Completion),
		Engagement: engagement,
		Affinity:   Affinity(c.Followed, c.Interactions),
		DeepModel:  deep,
	}
	return Composite(s, r.weights), nil
}

// dedupe collapses duplicate post ids, keeping the first occurrence.
func dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := seen[c.PostID]; ok {
			continue
		}
		seen[c.PostID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// diversify enforces author saturation over the top-K slots: each author
// appears at most once there; their surplus posts are demoted below, keeping
// relative order.
func diversify(scored []Scored, k int) []Scored {
	if len(scored) <= 1 {
		return scored
	}
	if k > len(scored) {
		k = len(scored)
	}

	top := make([]Scored, 0, k)
	var demoted, rest []Scored
	seenAuthors := make(map[string]struct{})

	for _, s := range scored {
		if len(top) < k {
			if _, dup := seenAuthors[s.AuthorID]; dup {
				demoted = append(demoted, s)
				continue
			}
			seenAuthors[s.AuthorID] = struct{}{}
			top = append(top, s)
			continue
		}
		rest = append(rest, s)
	}

	out := make([]Scored, 0, len(scored))
	out = append(out, top...)
	out = append(out, demoted...)
	out = append(out, rest...)
	return out
}
