package bus

import "fmt"

// ConfigurationError is returned by Bus.Subscribe when a subscription
// cannot be registered: incompatible handler, malformed topic pattern,
// or a disallowed duplicate registration.
type ConfigurationError struct {
	Reason string
}

func (err ConfigurationError) Error() string {
	return fmt.Sprintf("bus: invalid subscription, %s", err.Reason)
}

// HandlerError wraps the failure of a single subscribed handler.
//
// Failures are isolated per handler: they are logged and aggregated in the
// publish result, and never abort sibling handlers or the publisher call.
type HandlerError struct {
	Subscription string
	EventType    string
	Err          error
}

func (err HandlerError) Error() string {
	return fmt.Sprintf(
		"bus: subscription %q failed handling event type %q, %v",
		err.Subscription,
		err.EventType,
		err.Err,
	)
}

func (err HandlerError) Unwrap() error { return err.Err }
