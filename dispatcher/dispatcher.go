// Package dispatcher bridges durable Event Stores and the in-process event
// bus, following the transactional-outbox discipline: Domain Events reach
// subscribers only after they have been durably committed.
package dispatcher

// State describes the lifecycle of a Domain Event moving through the
// dispatcher, used in structured log entries.
type State string

// All the states an event goes through, from recording to delivery.
const (
	StateCreated   State = "created"
	StateAppended  State = "appended"
	StatePublished State = "published"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)
