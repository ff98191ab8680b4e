package bus

import (
	"fmt"

	"github.com/eventfold/go-eventfold/event"
)

// Priority is the ordering class of a Subscription, controlling handler
// execution sequence on publish.
type Priority int8

// Priority tiers, dispatched in declaration order.
const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	numPriorities = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int8(p))
	}
}

// Subscription is the handle returned by Bus.Subscribe, representing
// a single handler registration.
type Subscription struct {
	id         uint64
	name       string
	eventType  string
	handler    Handler
	priority   Priority
	rawPattern string
	pattern    *topicPattern
	exclusive  bool
}

// Name returns the subscription name, assigned at registration time.
func (s *Subscription) Name() string { return s.name }

// EventType returns the Domain Event type this subscription is bound to.
func (s *Subscription) EventType() string { return s.eventType }

// Priority returns the priority tier of this subscription.
func (s *Subscription) Priority() Priority { return s.priority }

// matches reports whether the subscription is interested in the event.
//
// A subscription with a topic pattern only matches events carrying a topic
// accepted by the pattern; without one, every event of the bound type matches.
func (s *Subscription) matches(evt event.Persisted) bool {
	if s.pattern == nil {
		return true
	}

	return s.pattern.match(evt.Topic())
}

// SubscribeOption configures a Subscription at registration time.
type SubscribeOption func(*Subscription)

// WithName assigns a stable name to the subscription, used in logs and
// handler failure reports.
func WithName(name string) SubscribeOption {
	return func(s *Subscription) { s.name = name }
}

// WithPriority assigns the priority tier of the subscription.
func WithPriority(p Priority) SubscribeOption {
	return func(s *Subscription) { s.priority = p }
}

// WithTopicPattern restricts the subscription to events whose topic matches
// the provided pattern.
//
// Patterns are '.'-delimited segment sequences. A '*' segment matches exactly
// one arbitrary segment; a trailing '**' segment matches one or more
// remaining segments. Without a wildcard, segment counts must match exactly.
func WithTopicPattern(pattern string) SubscribeOption {
	return func(s *Subscription) { s.rawPattern = pattern }
}

// WithExclusive requires this subscription to be the only one registered for
// its event type. Registration fails if other subscriptions exist, and later
// registrations for the same type fail while this subscription is active.
func WithExclusive() SubscribeOption {
	return func(s *Subscription) { s.exclusive = true }
}
