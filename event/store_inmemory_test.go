package event_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, event.NewStoreSuite(func() event.Store {
		return event.NewInMemoryStore()
	}))
}

func TestTrackingStore(t *testing.T) {
	ctx := context.Background()
	id := event.StreamID{Type: "test", Name: "tracking"}

	store := event.NewTrackingStore(event.NewInMemoryStore())

	newVersion, err := store.Append(
		ctx, id,
		version.CheckExact(0),
		event.ToEnvelope(event.SuitePayload{Value: 1}),
		event.ToEnvelope(event.SuitePayload{Value: 2}),
	)
	require.NoError(t, err)
	require.Equal(t, version.Version(2), newVersion)

	recorded := store.Recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, version.Version(1), recorded[0].Version)
	assert.Equal(t, version.Version(2), recorded[1].Version)

	// Failed appends are not recorded.
	_, err = store.Append(ctx, id, version.CheckExact(0), event.ToEnvelope(event.SuitePayload{Value: 3}))
	require.Error(t, err)
	assert.Len(t, store.Recorded(), 2)

	_, err = event.StreamToSlice(ctx, func(ctx context.Context, stream event.StreamWrite) error {
		return store.Stream(ctx, stream, id, version.Selector{From: 2})
	})
	require.NoError(t, err)

	selectors := store.StreamedSelectors()
	require.Len(t, selectors, 1)
	assert.Equal(t, version.Version(2), selectors[0].From)
}
