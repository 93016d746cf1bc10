// Package cursor implements opaque pagination cursors over feed ranks.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// Encode produces the opaque cursor for a rank: base64 over the ASCII decimal
// representation. Rank 0 means "from the top".
func Encode(rank int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(rank, 10)))
}

// Decode parses a cursor back into a rank. An empty cursor is rank 0. A
// malformed or negative cursor is an InvalidInput error, never a panic.
func Decode(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}

	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", apperrors.InvalidInput("malformed cursor"), err)
	}

	rank, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("malformed cursor")
	}
	if rank < 0 {
		return 0, apperrors.InvalidInput("cursor rank must not be negative")
	}
	return rank, nil
}
