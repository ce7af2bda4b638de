package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(&conf.MQTTSettings{
		Broker:   "tcp://broker.local:1883",
		ClientID: "aplose-test",
		Topic:    "aplose/events",
		QoS:      1,
		Retain:   true,
	})

	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.Equal(t, DefaultConfig().PublishTimeout, cfg.PublishTimeout)
}

func TestConnectRejectsInvalidBroker(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.Broker = "not a url"
	c := NewClient(cfg, nil)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	err = c.Connect(context.Background())
	require.Error(t, err, "second attempt inside the cooldown")
	assert.Contains(t, err.Error(), "too recent")

	c.Disconnect()
	c.Disconnect()
}

func TestPublishWhileDisconnected(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1883"
	c := NewClient(cfg, m)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Publish(ctx, "aplose/events/test", "{}")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.False(t, c.IsConnected())
	c.Disconnect()
}
