package events

import (
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/agent-snapper/pkg/types"
)

// EventType represents the type of event
type EventType string

const (
	EventOutcome     EventType = "unit.outcome"
	EventDeferred    EventType = "event.deferred"
	EventRedelivered EventType = "event.redelivered"
)

// Event is a notification about the managed unit
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// FromOutcome converts a journaled outcome into a broker event
func FromOutcome(record *types.OutcomeRecord) *Event {
	message := string(record.Tag)
	if record.Message != "" {
		message += ": " + record.Message
	}
	return &Event{
		ID:        record.ID,
		Type:      EventOutcome,
		Timestamp: record.Timestamp,
		Message:   message,
		Metadata: map[string]string{
			"snap":     record.Snap,
			"event_id": record.EventID,
			"kind":     string(record.Kind),
			"state":    record.State,
			"status":   string(record.Tag),
			"leader":   strconv.FormatBool(record.Leader),
			"retry":    strconv.FormatBool(record.Retry),
		},
	}
}

// FromDeferred converts a deferred event into a broker event of type t,
// either EventDeferred or EventRedelivered
func FromDeferred(t EventType, deferred *types.DeferredEvent) *Event {
	return &Event{
		ID:        deferred.EventID,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Message:   string(deferred.Kind) + " for " + deferred.Snap,
		Metadata: map[string]string{
			"snap":     deferred.Snap,
			"event_id": deferred.EventID,
			"kind":     string(deferred.Kind),
			"attempts": strconv.Itoa(deferred.Attempts),
		},
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker; it is safe to call more than once
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
