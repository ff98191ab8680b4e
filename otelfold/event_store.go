package otelfold

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

// Attribute keys used by the InstrumentedEventStore instrumentation.
const (
	ErrorAttribute                attribute.Key = "error"
	EventStreamIDKey              attribute.Key = "event_stream.id"
	EventStreamVersionSelectorKey attribute.Key = "event_stream.select_from_version"
	EventStreamExpectedVersionKey attribute.Key = "event_stream.expected_version"
	EventStoreNumEventsKey        attribute.Key = "event_store.num_events"
	EventTypeKey                  attribute.Key = "event_store.event_type"
)

var _ event.Store = &InstrumentedEventStore{}

// InstrumentedEventStore is a wrapper type over an event.Store
// instance to provide instrumentation, in the form of metrics and traces
// using OpenTelemetry.
//
// Use NewInstrumentedEventStore for constructing a new instance of this type.
type InstrumentedEventStore struct {
	eventStore event.Store

	tracer         trace.Tracer
	streamDuration metric.Int64Histogram
	appendDuration metric.Int64Histogram
}

func (ies *InstrumentedEventStore) registerMetrics(meter metric.Meter) error {
	var err error

	if ies.streamDuration, err = meter.Int64Histogram(
		"eventfold.event_store.stream.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of event.Store.Stream operations performed."),
	); err != nil {
		return fmt.Errorf("otelfold.InstrumentedEventStore: failed to register metric: %w", err)
	}

	if ies.appendDuration, err = meter.Int64Histogram(
		"eventfold.event_store.append.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of event.Store.Append operations performed."),
	); err != nil {
		return fmt.Errorf("otelfold.InstrumentedEventStore: failed to register metric: %w", err)
	}

	return nil
}

// NewInstrumentedEventStore returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an event.Store.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedEventStore(eventStore event.Store, options ...Option) (*InstrumentedEventStore, error) {
	cfg := newConfig(options...)

	ies := &InstrumentedEventStore{
		eventStore: eventStore,
		tracer:     cfg.tracer(),
	}

	if err := ies.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return ies, nil
}

// Stream calls the wrapped event.Store.Stream method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) (err error) {
	attributes := []attribute.KeyValue{
		EventStreamIDKey.String(id.String()),
		EventStreamVersionSelectorKey.Int64(int64(selector.From)),
	}

	ctx, span := ies.tracer.Start(ctx, "event.Store.Stream", trace.WithAttributes(attributes...))
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		ies.streamDuration.Record(ctx, duration.Milliseconds(),
			metric.WithAttributes(ErrorAttribute.Bool(err != nil)))

		if err != nil {
			span.RecordError(err)
		}

		span.End()
	}()

	err = ies.eventStore.Stream(ctx, stream, id, selector)

	return
}

// StreamByType calls the wrapped event.Store.StreamByType method and records
// metrics and traces around it.
func (ies *InstrumentedEventStore) StreamByType(
	ctx context.Context,
	stream event.StreamWrite,
	eventType string,
	since time.Time,
) (err error) {
	attributes := []attribute.KeyValue{
		EventTypeKey.String(eventType),
	}

	ctx, span := ies.tracer.Start(ctx, "event.Store.StreamByType", trace.WithAttributes(attributes...))
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		ies.streamDuration.Record(ctx, duration.Milliseconds(),
			metric.WithAttributes(ErrorAttribute.Bool(err != nil)))

		if err != nil {
			span.RecordError(err)
		}

		span.End()
	}()

	err = ies.eventStore.StreamByType(ctx, stream, eventType, since)

	return
}

// Append calls the wrapped event.Store.Append method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (newVersion version.Version, err error) {
	expectedVersion := int64(-1)
	if v, ok := expected.(version.CheckExact); ok {
		expectedVersion = int64(v)
	}

	attributes := []attribute.KeyValue{
		EventStreamIDKey.String(id.String()),
		EventStreamExpectedVersionKey.Int64(expectedVersion),
		EventStoreNumEventsKey.Int(len(events)),
	}

	ctx, span := ies.tracer.Start(ctx, "event.Store.Append", trace.WithAttributes(attributes...))
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		ies.appendDuration.Record(ctx, duration.Milliseconds(),
			metric.WithAttributes(ErrorAttribute.Bool(err != nil)))

		if err != nil {
			span.RecordError(err)
		}

		span.End()
	}()

	newVersion, err = ies.eventStore.Append(ctx, id, expected, events...)

	return
}
