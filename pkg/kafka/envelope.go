package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proerror77/Nova-sub006/pkg/logger"
)

// SchemaVersion is the current envelope schema version stamped on new events.
const SchemaVersion = 1

// Envelope is the canonical event envelope carried on every broker message.
// EventID is assigned at creation and never rewritten; AggregateID is the
// partition key.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	SourceService string          `json:"source_service"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SchemaVersion int             `json:"schema_version"`
}

// NewEnvelope creates an envelope with a generated id, the current timestamp,
// and the ambient correlation id (generated when the context carries none).
// The event type must belong to the closed registry.
func NewEnvelope(ctx context.Context, eventType, aggregateType, aggregateID, sourceService string, payload any) (*Envelope, error) {
	if !IsRegisteredEventType(eventType) {
		return nil, fmt.Errorf("unregistered event type %q", eventType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	_, correlationID := logger.EnsureCorrelationID(ctx)

	return &Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		SourceService: sourceService,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}, nil
}

// WithCausation records the event id that caused this one.
func (e *Envelope) WithCausation(causationID string) *Envelope {
	e.CausationID = causationID
	return e
}

// Marshal serializes the envelope to JSON bytes.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope deserializes an envelope from JSON bytes.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UnmarshalPayload deserializes the payload into the given target.
func (e *Envelope) UnmarshalPayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
