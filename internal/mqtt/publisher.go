package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
)

// EventPublisher forwards domain events from the event bus to the broker.
type EventPublisher struct {
	client Client
	config Config
}

// NewEventPublisher returns an events.EventConsumer publishing on client.
func NewEventPublisher(client Client, config Config) *EventPublisher {
	return &EventPublisher{client: client, config: config}
}

// Name implements events.EventConsumer.
func (p *EventPublisher) Name() string {
	return "mqtt"
}

// Topic returns the topic an event type is published on.
func (p *EventPublisher) Topic(eventType events.Type) string {
	base := strings.TrimSuffix(p.config.Topic, "/")
	if base == "" {
		return string(eventType)
	}
	return base + "/" + string(eventType)
}

// ProcessEvent implements events.EventConsumer.
func (p *EventPublisher) ProcessEvent(event events.Event) error {
	if !p.client.IsConnected() {
		return errors.Newf("mqtt client not connected, dropping %s event", event.Type).
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_event").
			Context("event_type", string(event.Type)).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	return p.client.Publish(ctx, p.Topic(event.Type), string(payload))
}
