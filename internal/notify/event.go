// Package notify tells the outside world what the pipeline decided about a
// record: over an AMQP topic exchange, in a Slack channel, or both.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind doubles as the AMQP routing key.
type Kind string

const (
	KindAssigned   Kind = "request.assigned"
	KindUnassigned Kind = "request.unassigned"
	KindDuplicate  Kind = "request.duplicate"
)

// Event describes one persisted routing or duplicate outcome.
type Event struct {
	Kind           Kind   `json:"kind"`
	RunID          string `json:"run_id"`
	RecordID       string `json:"record_id"`
	OriginalID     string `json:"original_id,omitempty"`
	HandlerID      int64  `json:"handler_id,omitempty"`
	HandlerName    string `json:"handler_name,omitempty"`
	RequestType    string `json:"request_type,omitempty"`
	SubRequestType string `json:"sub_request_type,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta  `json:"meta"`
	Data Event `json:"data"`
}

const producer = "intake"

// NewEnvelope wraps e with a fresh message id. The run id is the
// correlation id so consumers can group a run's events.
func NewEnvelope(e Event, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: e.RunID,
			Producer:      producer,
			Time:          now.UTC(),
			Type:          string(e.Kind) + ".v1",
		},
		Data: e,
	}
}
