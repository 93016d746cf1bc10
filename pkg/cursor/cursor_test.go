package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// ---------------------------------------------------------------------------
// Encode / Decode
// ---------------------------------------------------------------------------

func TestCursor_RoundTrip(t *testing.T) {
	for _, rank := range []int64{0, 1, 42, 999_999} {
		got, err := Decode(Encode(rank))
		require.NoError(t, err)
		assert.Equal(t, rank, got)
	}
}

func TestCursor_Format(t *testing.T) {
	// The wire format is base64 over ASCII decimal, not binary.
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("42")), Encode(42))
}

func TestCursor_EmptyIsRankZero(t *testing.T) {
	rank, err := Decode("")
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestCursor_Malformed(t *testing.T) {
	for _, c := range []string{"!!!", "bm90LWEtbnVtYmVy", base64.StdEncoding.EncodeToString([]byte("1.5"))} {
		_, err := Decode(c)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "cursor %q", c)
	}
}

func TestCursor_NegativeRankRejected(t *testing.T) {
	_, err := Decode(base64.StdEncoding.EncodeToString([]byte("-3")))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// Complexity budget
// ---------------------------------------------------------------------------

func TestComplexityBudget_Check(t *testing.T) {
	b := DefaultComplexityBudget()

	assert.NoError(t, b.Check(0, 20), "flat page")
	assert.NoError(t, b.Check(1, 100), "one expansion level")
	assert.Error(t, b.Check(10, 20), "deep expansion blows the budget")
	assert.Error(t, b.Check(-1, 20))
	assert.Error(t, b.Check(0, -5))
}

func TestComplexityBudget_Cost(t *testing.T) {
	b := ComplexityBudget{BaseCost: 1, DepthMultiplier: 5, Budget: 50}

	assert.Equal(t, 1, b.Cost(0, 20))
	assert.Equal(t, 6, b.Cost(1, 20))
	assert.Equal(t, 1+5*2+3, b.Cost(2, 300), "large pages cost extra per 100 items")
}
