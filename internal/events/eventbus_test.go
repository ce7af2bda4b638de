package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingConsumer struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *recordingConsumer) Name() string { return "recorder" }

func (c *recordingConsumer) ProcessEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type panickingConsumer struct{}

func (panickingConsumer) Name() string             { return "panics" }
func (panickingConsumer) ProcessEvent(Event) error { panic("boom") }

func TestEventBusDeliversAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewEventBus(&Config{BufferSize: 10, Workers: 2})
	consumer := &recordingConsumer{}
	require.NoError(t, bus.RegisterConsumer(consumer))
	require.Error(t, bus.RegisterConsumer(&recordingConsumer{}), "duplicate names are rejected")

	for i := range 5 {
		assert.True(t, bus.TryPublish(New(TaskFinished, 1, 2, uint(i), nil)))
	}

	require.NoError(t, bus.Shutdown(time.Second))
	assert.Equal(t, 5, consumer.count(), "buffered events are delivered on shutdown")
	assert.False(t, bus.TryPublish(New(TaskFinished, 1, 2, 3, nil)), "closed bus rejects events")

	stats := bus.GetStats()
	assert.Equal(t, uint64(5), stats.EventsReceived)
	assert.Equal(t, uint64(5), stats.EventsProcessed)
}

func TestEventBusWithoutConsumersDropsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewEventBus(nil)
	assert.False(t, bus.TryPublish(New(PhaseEnded, 1, 1, 1, nil)))
	require.NoError(t, bus.Shutdown(time.Second))
}

func TestEventBusSurvivesConsumerFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewEventBus(&Config{BufferSize: 4, Workers: 1})
	failing := &recordingConsumer{err: errors.New("broker down")}
	require.NoError(t, bus.RegisterConsumer(panickingConsumer{}))
	require.NoError(t, bus.RegisterConsumer(failing))

	assert.True(t, bus.TryPublish(New(ResultsImported, 1, 1, 1, map[string]any{"count": 3})))
	require.NoError(t, bus.Shutdown(time.Second))

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, uint64(2), bus.GetStats().ConsumerErrors)
}

func TestPublishNilPublisher(t *testing.T) {
	assert.False(t, Publish(nil, New(CampaignArchived, 1, 0, 1, nil)))
}

func TestNilEventBus(t *testing.T) {
	var bus *EventBus
	assert.False(t, bus.TryPublish(Event{}))
	assert.NoError(t, bus.Shutdown(time.Millisecond))
	assert.Equal(t, EventBusStats{}, bus.GetStats())
}
