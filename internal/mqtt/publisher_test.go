package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockClient) Publish(ctx context.Context, topic, payload string) error {
	return m.Called(ctx, topic, payload).Error(0)
}

func (m *mockClient) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockClient) Disconnect() {
	m.Called()
}

func TestEventPublisherTopic(t *testing.T) {
	p := NewEventPublisher(&mockClient{}, Config{Topic: "aplose/events/"})
	assert.Equal(t, "aplose/events/task_finished", p.Topic(events.TaskFinished))

	p = NewEventPublisher(&mockClient{}, Config{})
	assert.Equal(t, "phase_ended", p.Topic(events.PhaseEnded))
}

func TestEventPublisherPublishesJSON(t *testing.T) {
	client := &mockClient{}
	client.On("IsConnected").Return(true)

	var payload string
	client.On("Publish", mock.Anything, "aplose/events/ranges_reconciled", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { payload = args.String(2) }).
		Return(nil)

	p := NewEventPublisher(client, Config{Topic: "aplose/events", PublishTimeout: time.Second})
	event := events.New(events.RangesReconciled, 3, 7, 1, map[string]any{"created": 2})
	require.NoError(t, p.ProcessEvent(event))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "ranges_reconciled", decoded["type"])
	assert.InDelta(t, 3, decoded["campaign_id"], 0)
	assert.InDelta(t, 7, decoded["phase_id"], 0)
	client.AssertExpectations(t)
}

func TestEventPublisherDisconnected(t *testing.T) {
	client := &mockClient{}
	client.On("IsConnected").Return(false)

	p := NewEventPublisher(client, DefaultConfig())
	require.Error(t, p.ProcessEvent(events.New(events.PhaseEnded, 1, 1, 1, nil)))
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventPublisherOnBus(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &mockClient{}
	client.On("IsConnected").Return(true)
	client.On("Publish", mock.Anything, "aplose/campaign_archived", mock.Anything).Return(nil)

	bus := events.NewEventBus(&events.Config{BufferSize: 8, Workers: 1})
	require.NoError(t, bus.RegisterConsumer(NewEventPublisher(client, Config{Topic: "aplose", PublishTimeout: time.Second})))

	assert.True(t, bus.TryPublish(events.New(events.CampaignArchived, 1, 0, 1, nil)))
	require.NoError(t, bus.Shutdown(time.Second))

	client.AssertNumberOfCalls(t, "Publish", 1)
}
