// Package cdc ingests Debezium-style change records into the analytics store.
package cdc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// Debezium operation codes.
const (
	OpInsert   = "c"
	OpUpdate   = "u"
	OpDelete   = "d"
	OpSnapshot = "r"
)

// Source identifies where a change record originated.
type Source struct {
	DB     string `json:"db"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	TSMS   int64  `json:"ts_ms"`
}

// Record is a Debezium-style change event. Insert, update, and snapshot
// records carry the row state in After; deletes carry it in Before.
type Record struct {
	Op     string          `json:"op"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
	Source Source          `json:"source"`
}

// ParseRecord decodes a raw CDC message.
func ParseRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cdc record: %w", err)
	}
	return &rec, nil
}

// Validate performs the structural and timestamp-skew checks. Records that
// fail validation are dead-lettered by the consumer; they never reach the
// store.
func (r *Record) Validate(now time.Time, maxSkew time.Duration) error {
	switch r.Op {
	case OpInsert, OpUpdate, OpSnapshot:
		if len(r.After) == 0 || string(r.After) == "null" {
			return apperrors.InvalidInput(fmt.Sprintf("cdc op %q requires after state", r.Op))
		}
	case OpDelete:
		if len(r.Before) == 0 || string(r.Before) == "null" {
			return apperrors.InvalidInput("cdc delete requires before state")
		}
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown cdc op %q", r.Op))
	}

	if r.Source.DB == "" || r.Source.Table == "" {
		return apperrors.InvalidInput("cdc record missing source db or table")
	}
	if r.Source.TSMS <= 0 {
		return apperrors.InvalidInput("cdc record missing source timestamp")
	}

	ts := time.UnixMilli(r.Source.TSMS)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return apperrors.InvalidInput(fmt.Sprintf("cdc timestamp outside skew bound: %s", skew))
	}

	return nil
}

// State returns the row image the operation describes: After for inserts,
// updates, and snapshots; Before for deletes.
func (r *Record) State() json.RawMessage {
	if r.Op == OpDelete {
		return r.Before
	}
	return r.After
}

// DedupKey derives the stable identity used for C3 deduplication.
func (r *Record) DedupKey(pk string) string {
	return kafka.CompositeKey(
		r.Source.DB,
		r.Source.Table,
		pk,
		r.Op,
		strconv.FormatInt(r.Source.TSMS, 10),
	)
}
