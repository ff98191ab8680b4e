package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/eventfold/go-eventfold/bus"
	"github.com/eventfold/go-eventfold/logger"
)

// DefaultShutdownTimeout bounds how long Manager.Stop waits for in-flight
// async deliveries before force-cancelling them.
const DefaultShutdownTimeout = 10 * time.Second

type registration struct {
	eventType string
	handler   bus.Handler
	opts      []bus.SubscribeOption
}

// Manager owns the subscription lifecycle of an application: it collects
// handler registrations up front, activates them all on Start, and
// deactivates them on Stop, draining in-flight async deliveries of the
// watched dispatcher Stores within a bounded timeout.
type Manager struct {
	bus             *bus.Bus
	logger          logger.Logger
	shutdownTimeout time.Duration

	registrations []registration
	subscriptions []*bus.Subscription
	stores        []*Store
}

// ManagerOption configures a dispatcher.Manager instance.
type ManagerOption func(*Manager)

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.shutdownTimeout = d }
}

// WithManagerLogger sets the logger used to report lifecycle transitions.
func WithManagerLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager operating on the provided bus.
func NewManager(eventBus *bus.Bus, opts ...ManagerOption) *Manager {
	manager := &Manager{
		bus:             eventBus,
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// Register collects a subscription to be activated on Start.
func (m *Manager) Register(eventType string, handler bus.Handler, opts ...bus.SubscribeOption) {
	m.registrations = append(m.registrations, registration{
		eventType: eventType,
		handler:   handler,
		opts:      opts,
	})
}

// Watch adds a dispatcher.Store whose in-flight async deliveries
// Stop should drain.
func (m *Manager) Watch(store *Store) {
	m.stores = append(m.stores, store)
}

// Start activates all collected registrations on the bus, in registration
// order.
//
// On the first invalid registration, the ones already activated are rolled
// back and the configuration error is returned.
func (m *Manager) Start(context.Context) error {
	for _, reg := range m.registrations {
		sub, err := m.bus.Subscribe(reg.eventType, reg.handler, reg.opts...)
		if err != nil {
			for _, active := range m.subscriptions {
				m.bus.Unsubscribe(active)
			}

			m.subscriptions = nil

			return fmt.Errorf("dispatcher.Manager: failed to activate subscription, %w", err)
		}

		m.subscriptions = append(m.subscriptions, sub)
	}

	logger.Info(m.logger, "subscriptions activated",
		logger.With("count", len(m.subscriptions)),
	)

	return nil
}

// Stop deactivates all the subscriptions activated through Start, then
// drains the in-flight async deliveries of the watched Stores.
//
// The drain is bounded by the configured shutdown timeout, on top of the
// provided context: overruns are force-cancelled, logged and reported
// through the returned error.
func (m *Manager) Stop(ctx context.Context) error {
	for _, sub := range m.subscriptions {
		m.bus.Unsubscribe(sub)
	}

	m.subscriptions = nil

	ctx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	for _, store := range m.stores {
		if err := store.Drain(ctx); err != nil {
			return fmt.Errorf("dispatcher.Manager: failed to drain in-flight deliveries, %w", err)
		}
	}

	logger.Info(m.logger, "subscriptions deactivated, in-flight deliveries drained")

	return nil
}
