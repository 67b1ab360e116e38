package events

import (
	"context"
	"time"
)

// Streams
const (
	StreamMediaBuy = "events:media_buy"
	StreamWorkflow = "events:workflow"
)

// Event types
const (
	EventMediaBuyCreated     = "media_buy_created"
	EventMediaBuyUpdated     = "media_buy_updated"
	EventMediaBuyOrphaned    = "media_buy_orphaned"
	EventWorkflowStepUpdated = "workflow_step_updated"
)

// Event is the JSON message carried on a stream. Payloads of every event
// include tenant_id so subscribers can scope delivery.
type Event struct {
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload"`
}

// TenantID returns the tenant the event belongs to, or "".
func (e Event) TenantID() string {
	id, _ := e.Payload["tenant_id"].(string)
	return id
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
