package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewEnvelope wraps rec for the wire, stamping the current schema version.
func NewEnvelope(sender, farmID string, rec Record, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s record: %w", rec.Kind(), err)
	}
	return Envelope{
		ID:            uuid.NewString(),
		Kind:          rec.Kind(),
		SchemaVersion: CurrentSchemaVersion,
		Sender:        sender,
		FarmID:        farmID,
		SentAt:        now.UTC(),
		Payload:       payload,
	}, nil
}

// DecodeEnvelope parses the outer frame only; the payload is decoded by kind.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("envelope %q has no kind", env.ID)
	}
	if len(env.Payload) == 0 {
		return Envelope{}, fmt.Errorf("envelope %q has no payload", env.ID)
	}
	return env, nil
}
