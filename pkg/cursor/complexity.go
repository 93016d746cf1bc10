package cursor

import (
	"fmt"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// ComplexityBudget rejects queries whose estimated cost exceeds a fixed
// budget before any data is touched.
type ComplexityBudget struct {
	// BaseCost is charged for every query.
	BaseCost int

	// DepthMultiplier is charged per level of nesting (cascades, expansions).
	DepthMultiplier int

	// Budget is the maximum allowed total cost.
	Budget int
}

// DefaultComplexityBudget mirrors the read-path defaults: flat pages are
// cheap, each expansion level costs as much as five flat pages.
func DefaultComplexityBudget() ComplexityBudget {
	return ComplexityBudget{
		BaseCost:        1,
		DepthMultiplier: 5,
		Budget:          50,
	}
}

// Cost computes the estimated cost of a query with the given expansion depth
// and page size.
func (b ComplexityBudget) Cost(depth, pageSize int) int {
	cost := b.BaseCost + depth*b.DepthMultiplier
	// Oversized pages count extra per 100 items requested.
	cost += pageSize / 100
	return cost
}

// Check returns an InvalidInput error when the query exceeds the budget.
func (b ComplexityBudget) Check(depth, pageSize int) error {
	if depth < 0 || pageSize < 0 {
		return apperrors.InvalidInput("depth and page size must not be negative")
	}
	if cost := b.Cost(depth, pageSize); cost > b.Budget {
		return fmt.Errorf("%w: cost %d exceeds budget %d",
			apperrors.InvalidInput("query too complex"), cost, b.Budget)
	}
	return nil
}
