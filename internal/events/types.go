// Package events provides an asynchronous event bus that decouples domain
// mutations from outbound notification (MQTT) so that request handlers never
// block on a broker.
package events

import "time"

// Type names a domain event.
type Type string

const (
	RangesReconciled Type = "ranges_reconciled"
	TaskFinished     Type = "task_finished"
	ResultsImported  Type = "results_imported"
	PhaseEnded       Type = "phase_ended"
	CampaignArchived Type = "campaign_archived"
)

// Event is a domain event published after its transaction committed.
type Event struct {
	Type       Type           `json:"type"`
	CampaignID uint           `json:"campaign_id"`
	PhaseID    uint           `json:"phase_id,omitempty"`
	UserID     uint           `json:"user_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// New returns an event stamped with the current time.
func New(eventType Type, campaignID, phaseID, userID uint, data map[string]any) Event {
	return Event{
		Type:       eventType,
		CampaignID: campaignID,
		PhaseID:    phaseID,
		UserID:     userID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
}

// Publisher accepts events without blocking.
type Publisher interface {
	// TryPublish returns true if the event was accepted, false if dropped.
	TryPublish(event Event) bool
}

// Publish sends event to p when p is not nil.
func Publish(p Publisher, event Event) bool {
	if p == nil {
		return false
	}
	return p.TryPublish(event)
}

// EventConsumer processes events delivered by the bus.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
