package event

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/eventfold/go-eventfold/version"
)

// SuitePayload is the Domain Event payload used by the StoreSuite tests.
//
// Event Store implementations relying on a serde.Registry should register
// this type before running the suite.
type SuitePayload struct {
	Value int `json:"value"`
}

// Name implements message.Message.
func (SuitePayload) Name() string { return "store_suite_payload_recorded" }

// StoreSuite is a reusable test suite exercising the event.Store contract:
// gapless 1..N stream versions, optimistic concurrency conflicts,
// since-version streaming and by-type streaming.
//
// Run it against any Store implementation:
//
//	suite.Run(t, event.NewStoreSuite(func() event.Store {
//		return event.NewInMemoryStore()
//	}))
type StoreSuite struct {
	suite.Suite

	factory func() Store
	store   Store
}

// NewStoreSuite creates a new StoreSuite using the provided factory
// to build a fresh, empty Store for each test.
func NewStoreSuite(factory func() Store) *StoreSuite {
	return &StoreSuite{factory: factory}
}

// SetupTest builds a fresh Store instance.
func (ss *StoreSuite) SetupTest() {
	ss.store = ss.factory()
}

func (ss *StoreSuite) streamToSlice(id StreamID, selector version.Selector) []Persisted {
	ss.T().Helper()

	events, err := StreamToSlice(context.Background(), func(ctx context.Context, stream StreamWrite) error {
		return ss.store.Stream(ctx, stream, id, selector)
	})
	ss.Require().NoError(err)

	return events
}

// TestAppendedVersionsAreGapless asserts that any sequence of successful
// appends to one stream produces versions exactly 1..N.
func (ss *StoreSuite) TestAppendedVersionsAreGapless() {
	ctx := context.Background()
	id := StreamID{Type: "test", Name: "gapless"}

	for i := 0; i < 5; i++ {
		newVersion, err := ss.store.Append(
			ctx, id,
			version.CheckExact(i),
			ToEnvelope(SuitePayload{Value: i + 1}),
		)

		ss.Require().NoError(err)
		ss.Require().Equal(version.Version(i+1), newVersion)
	}

	events := ss.streamToSlice(id, version.SelectFromBeginning)
	ss.Require().Len(events, 5)

	for i, evt := range events {
		ss.Assert().Equal(version.Version(i+1), evt.Version)
		ss.Assert().Equal(SuitePayload{Value: i + 1}, evt.Message)
	}
}

// TestStaleExpectedVersionConflicts asserts that appending with a stale
// expected version fails with version.ConflictError and writes nothing.
func (ss *StoreSuite) TestStaleExpectedVersionConflicts() {
	ctx := context.Background()
	id := StreamID{Type: "test", Name: "conflict"}

	_, err := ss.store.Append(ctx, id, version.CheckExact(0), ToEnvelope(SuitePayload{Value: 1}))
	ss.Require().NoError(err)

	newVersion, err := ss.store.Append(ctx, id, version.CheckExact(1), ToEnvelope(SuitePayload{Value: 2}))
	ss.Require().NoError(err)
	ss.Require().Equal(version.Version(2), newVersion)

	// Same expected version as the previous append: stale by now.
	_, err = ss.store.Append(ctx, id, version.CheckExact(1), ToEnvelope(SuitePayload{Value: 3}))

	var conflictErr version.ConflictError
	ss.Require().ErrorAs(err, &conflictErr)
	ss.Assert().Equal(version.Version(1), conflictErr.Expected)
	ss.Assert().Equal(version.Version(2), conflictErr.Actual)

	events := ss.streamToSlice(id, version.SelectFromBeginning)
	ss.Require().Len(events, 2)
	ss.Assert().Equal(SuitePayload{Value: 1}, events[0].Message)
	ss.Assert().Equal(SuitePayload{Value: 2}, events[1].Message)
}

// TestStreamSinceVersion asserts that streaming with a selector only returns
// events from the selected version onwards.
func (ss *StoreSuite) TestStreamSinceVersion() {
	ctx := context.Background()
	id := StreamID{Type: "test", Name: "since"}

	for i := 0; i < 8; i++ {
		_, err := ss.store.Append(
			ctx, id,
			version.CheckExact(i),
			ToEnvelope(SuitePayload{Value: i + 1}),
		)
		ss.Require().NoError(err)
	}

	events := ss.streamToSlice(id, version.Selector{From: 6})
	ss.Require().Len(events, 3)

	for i, evt := range events {
		ss.Assert().Equal(version.Version(i+6), evt.Version)
		ss.Assert().Equal(SuitePayload{Value: i + 6}, evt.Message)
	}
}

// TestStreamMissingStreamIsEmpty asserts that streaming an unknown stream
// returns no events and no error.
func (ss *StoreSuite) TestStreamMissingStreamIsEmpty() {
	events := ss.streamToSlice(StreamID{Type: "test", Name: "missing"}, version.SelectFromBeginning)
	ss.Assert().Empty(events)
}

// TestStreamByType asserts that by-type streaming returns all committed
// events of that type across streams, bounded by the store content
// at call time.
func (ss *StoreSuite) TestStreamByType() {
	ctx := context.Background()

	first := StreamID{Type: "test", Name: "by-type-1"}
	second := StreamID{Type: "test", Name: "by-type-2"}

	_, err := ss.store.Append(ctx, first, version.CheckExact(0), ToEnvelope(SuitePayload{Value: 1}))
	ss.Require().NoError(err)

	_, err = ss.store.Append(ctx, second, version.CheckExact(0), ToEnvelope(SuitePayload{Value: 2}))
	ss.Require().NoError(err)

	events, err := StreamToSlice(ctx, func(ctx context.Context, stream StreamWrite) error {
		return ss.store.StreamByType(ctx, stream, SuitePayload{}.Name(), time.Time{})
	})

	ss.Require().NoError(err)
	ss.Require().Len(events, 2)
	ss.Assert().Equal(first, events[0].StreamID)
	ss.Assert().Equal(second, events[1].StreamID)
}

// TestMetadataSurvivesRoundTrip asserts that an Envelope serialized into the
// store and streamed back reproduces payload and metadata, with the
// store-assigned identity fields present.
func (ss *StoreSuite) TestMetadataSurvivesRoundTrip() {
	ctx := context.Background()
	id := StreamID{Type: "test", Name: "round-trip"}

	evt := ToEnvelope(SuitePayload{Value: 42}).
		WithTopic("tests.suite.recorded").
		WithCorrelation("correlation-id", "causation-id")

	_, err := ss.store.Append(ctx, id, version.CheckExact(0), evt)
	ss.Require().NoError(err)

	events := ss.streamToSlice(id, version.SelectFromBeginning)
	ss.Require().Len(events, 1)

	got := events[0]
	ss.Assert().Equal(SuitePayload{Value: 42}, got.Message)
	ss.Assert().Equal("tests.suite.recorded", got.Topic())
	ss.Assert().Equal("correlation-id", got.CorrelationID())
	ss.Assert().Equal("causation-id", got.CausationID())
	ss.Assert().NotEmpty(got.ID())
	ss.Assert().False(got.RecordedAt().IsZero())
}
