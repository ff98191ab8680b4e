package projection_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/bus"
	"github.com/eventfold/go-eventfold/dispatcher"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/internal/account"
	"github.com/eventfold/go-eventfold/projection"
	"github.com/eventfold/go-eventfold/version"
)

// balances is a tiny read-model: account id to current balance, in cents.
type balances struct {
	mx       sync.Mutex
	byID     map[uuid.UUID]int64
	observed int
}

func newBalances() *balances {
	return &balances{byID: make(map[uuid.UUID]int64)}
}

func (b *balances) Apply(_ context.Context, evt event.Persisted) error {
	b.mx.Lock()
	defer b.mx.Unlock()

	b.observed++

	switch evt := evt.Message.(type) {
	case *account.MoneyWasDeposited:
		b.byID[evt.ID] += evt.Amount
	case *account.MoneyWasWithdrawn:
		b.byID[evt.ID] -= evt.Amount
	}

	return nil
}

func (b *balances) balanceOf(id uuid.UUID) int64 {
	b.mx.Lock()
	defer b.mx.Unlock()

	return b.byID[id]
}

func deposit(t *testing.T, store event.Store, id uuid.UUID, current version.Version, amount int64) {
	t.Helper()

	_, err := store.Append(
		context.Background(),
		event.StreamID{Type: "Account", Name: id.String()},
		version.CheckExact(current),
		event.ToEnvelope(&account.MoneyWasDeposited{ID: id, Amount: amount}).
			WithTopic("accounts.deposited"),
	)
	require.NoError(t, err)
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	store := event.NewInMemoryStore()

	firstAccount, secondAccount := uuid.New(), uuid.New()

	deposit(t, store, firstAccount, 0, 10_00)
	deposit(t, store, secondAccount, 0, 25_00)
	deposit(t, store, firstAccount, 1, 5_00)

	readModel := newBalances()

	require.NoError(t, projection.Rebuild(
		ctx, store, readModel,
		"AccountMoneyWasDeposited", time.Time{},
	))

	assert.Equal(t, int64(15_00), readModel.balanceOf(firstAccount))
	assert.Equal(t, int64(25_00), readModel.balanceOf(secondAccount))
	assert.Equal(t, 3, readModel.observed)
}

func TestSubscribeKeepsReadModelFresh(t *testing.T) {
	ctx := context.Background()

	eventBus := bus.New()
	readModel := newBalances()

	subscriptions, err := projection.Subscribe(eventBus, readModel, []string{
		"AccountMoneyWasDeposited",
		"AccountMoneyWasWithdrawn",
	})
	require.NoError(t, err)
	require.Len(t, subscriptions, 2)

	store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus)
	accountID := uuid.New()

	deposit(t, store, accountID, 0, 40_00)

	_, err = store.Append(
		ctx,
		event.StreamID{Type: "Account", Name: accountID.String()},
		version.CheckExact(1),
		event.ToEnvelope(&account.MoneyWasWithdrawn{ID: accountID, Amount: 15_00}).
			WithTopic("accounts.withdrawn"),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(25_00), readModel.balanceOf(accountID))

	for _, sub := range subscriptions {
		eventBus.Unsubscribe(sub)
	}

	deposit(t, store, accountID, 2, 1_00)
	assert.Equal(t, int64(25_00), readModel.balanceOf(accountID))
}

func TestSubscribeRollsBackOnInvalidRegistration(t *testing.T) {
	eventBus := bus.New()

	_, err := projection.Subscribe(eventBus, newBalances(), []string{
		"AccountMoneyWasDeposited",
		"",
	})

	var configErr bus.ConfigurationError
	require.ErrorAs(t, err, &configErr)

	// The first registration must have been rolled back.
	_, err = eventBus.Subscribe("AccountMoneyWasDeposited", bus.HandlerFunc(
		func(context.Context, event.Persisted) error { return nil },
	), bus.WithExclusive())
	assert.NoError(t, err)
}
