package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// EventBus provides asynchronous event processing with non-blocking guarantees
type EventBus struct {
	// Channel for events
	eventChan chan Event

	// Configuration
	bufferSize int
	workers    int

	// State management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	// Consumers
	consumers []EventConsumer

	// Metrics
	stats EventBusStats

	logger logger.Logger
}

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1000,
		Workers:    2,
	}
}

// NewEventBus creates an event bus. Workers start with the first consumer.
func NewEventBus(config *Config) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    max(config.Workers, 1),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.Global().Module("events"),
	}

	eb.logger.Info("event bus initialized",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", eb.workers))

	return eb
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	eb.logger.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	// Start workers with the first consumer
	if len(eb.consumers) == 1 && eb.ctx.Err() == nil {
		eb.start()
	}

	return nil
}

// TryPublish attempts to publish an event without blocking
// Returns true if the event was accepted, false if dropped
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.running.Load() {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer", logger.String("type", string(event.Type)))
		return false
	}
}

// start begins the worker goroutines
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}

	for i := range eb.workers {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker processes events from the channel
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()

	log := eb.logger.With(logger.Int("worker_id", id))
	log.Debug("worker started")

	for {
		select {
		case <-eb.ctx.Done():
			eb.drain(log)
			return
		case event := <-eb.eventChan:
			eb.processEvent(event, log)
		}
	}
}

// drain delivers the events still buffered at shutdown.
func (eb *EventBus) drain(log logger.Logger) {
	for {
		select {
		case event := <-eb.eventChan:
			eb.processEvent(event, log)
		default:
			return
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event Event, log logger.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		// Process in a recovery wrapper to prevent panics
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("type", string(event.Type)))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err),
					logger.String("type", string(event.Type)))
				return
			}
			atomic.AddUint64(&eb.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events, delivers the buffered ones and waits for
// the workers up to timeout.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil {
		return nil
	}

	eb.running.Store(false)
	eb.cancel()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
