// Package bus provides an in-process Event Bus, delivering committed Domain
// Events to subscribed handlers with priority-tier ordering and hierarchical
// topic filtering.
//
// Handlers are registered for exactly one Domain Event type. Delivery runs
// High, then Normal, then Low priority; a tier starts only after the previous
// one has fully completed. Synchronous publishing executes handlers in
// registration order; asynchronous publishing may run the handlers of one
// tier concurrently, gated by a maximum concurrency limit.
//
// Handler failures are isolated: a failing handler never prevents its
// siblings from running. The bus does not retry failed handlers; wrap a
// specific handler with WithRetry when retry semantics are desired.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/logger"
)

// Handler processes a committed Domain Event delivered by the Bus.
//
// Handlers must be safe to cancel mid-flight through the context: the
// durable write they react to has already been committed.
type Handler interface {
	Handle(ctx context.Context, evt event.Persisted) error
}

// HandlerFunc is a functional implementation of the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.Persisted) error

// Handle implements the bus.Handler interface.
func (fn HandlerFunc) Handle(ctx context.Context, evt event.Persisted) error {
	return fn(ctx, evt)
}

// Bus is an in-process, priority- and topic-aware Event Bus.
//
// Construct one instance at process start with New, and pass it by reference
// to every component that publishes or subscribes.
//
// The subscription registry uses copy-on-write lists, so Subscribe and
// Unsubscribe are safe to call while a dispatch is in flight: the dispatch
// keeps operating on the registration snapshot taken when it started.
type Bus struct {
	logger logger.Logger

	mx            sync.RWMutex
	nextID        uint64
	subscriptions map[string][]*Subscription
}

// Option configures a Bus instance.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a new Bus instance.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[string][]*Subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers the provided Handler for the specified Domain Event
// type, returning the Subscription handle to use with Unsubscribe.
//
// A ConfigurationError is returned when the subscription is invalid: nil
// handler, empty event type, malformed topic pattern, or a violated
// exclusive registration.
func (b *Bus) Subscribe(eventType string, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if eventType == "" {
		return nil, ConfigurationError{Reason: "event type must not be empty"}
	}

	if handler == nil {
		return nil, ConfigurationError{Reason: "handler must not be nil"}
	}

	sub := &Subscription{
		eventType: eventType,
		handler:   handler,
		priority:  PriorityNormal,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if sub.priority < PriorityHigh || sub.priority > PriorityLow {
		return nil, ConfigurationError{Reason: fmt.Sprintf("unknown priority tier %d", sub.priority)}
	}

	if sub.rawPattern != "" {
		pattern, err := parseTopicPattern(sub.rawPattern)
		if err != nil {
			return nil, ConfigurationError{Reason: err.Error()}
		}

		sub.pattern = pattern
	}

	b.mx.Lock()
	defer b.mx.Unlock()

	existing := b.subscriptions[eventType]

	for _, other := range existing {
		if other.exclusive {
			return nil, ConfigurationError{Reason: fmt.Sprintf(
				"event type %q is exclusively registered to subscription %q", eventType, other.name,
			)}
		}
	}

	if sub.exclusive && len(existing) > 0 {
		return nil, ConfigurationError{Reason: fmt.Sprintf(
			"exclusive registration requested, but event type %q already has subscribers", eventType,
		)}
	}

	b.nextID++
	sub.id = b.nextID

	if sub.name == "" {
		sub.name = fmt.Sprintf("%s#%d", eventType, sub.id)
	}

	// Copy-on-write: an in-flight dispatch holding the previous slice
	// never observes a partial registry state.
	next := make([]*Subscription, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, sub)
	b.subscriptions[eventType] = next

	return sub, nil
}

// Unsubscribe removes the provided Subscription from the Bus.
//
// Dispatches already in flight may still deliver to the removed handler.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mx.Lock()
	defer b.mx.Unlock()

	existing := b.subscriptions[sub.eventType]
	next := make([]*Subscription, 0, len(existing))

	for _, other := range existing {
		if other.id != sub.id {
			next = append(next, other)
		}
	}

	if len(next) == 0 {
		delete(b.subscriptions, sub.eventType)
		return
	}

	b.subscriptions[sub.eventType] = next
}

// matching returns the subscriptions interested in the provided event,
// partitioned by priority tier, preserving registration order within a tier.
func (b *Bus) matching(evt event.Persisted) [numPriorities][]*Subscription {
	b.mx.RLock()
	subscriptions := b.subscriptions[evt.Message.Name()]
	b.mx.RUnlock()

	var tiers [numPriorities][]*Subscription

	for _, sub := range subscriptions {
		if sub.matches(evt) {
			tiers[sub.priority] = append(tiers[sub.priority], sub)
		}
	}

	return tiers
}

// handle runs a single handler inside an isolated failure boundary:
// returned errors and panics are captured, never propagated to siblings.
func (b *Bus) handle(ctx context.Context, sub *Subscription, evt event.Persisted) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return sub.handler.Handle(ctx, evt)
}

func (b *Bus) reportFailure(sub *Subscription, evt event.Persisted, err error) HandlerError {
	handlerErr := HandlerError{
		Subscription: sub.name,
		EventType:    sub.eventType,
		Err:          err,
	}

	logger.Error(b.logger, "event handler failed",
		logger.With("subscription", sub.name),
		logger.With("event_type", sub.eventType),
		logger.With("stream_id", evt.StreamID.String()),
		logger.With("version", evt.Version),
		logger.With("error", err),
	)

	return handlerErr
}

// Publish synchronously delivers the provided event to all matching
// subscriptions, in priority-tier order; within a tier, handlers run
// in registration order.
//
// Publish returns only after every matching handler has run. Handler
// failures never abort the dispatch: they are aggregated into the returned
// error, which unwraps (errors.Join semantics) to the list of HandlerError
// values, one per failed handler. A nil return means every handler succeeded.
func (b *Bus) Publish(ctx context.Context, evt event.Persisted) error {
	var failures []error

	for _, tier := range b.matching(evt) {
		for _, sub := range tier {
			if err := b.handle(ctx, sub, evt); err != nil {
				failures = append(failures, b.reportFailure(sub, evt, err))
			}
		}
	}

	return errors.Join(failures...)
}
