package account_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/aggregate"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/internal/account"
)

func TestAccount(t *testing.T) {
	var (
		id     = uuid.New()
		holder = "John Ross"
		now    = time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	)

	t.Run("accounts can be opened", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			When(func() (*account.Account, error) {
				return account.Open(id, holder, now)
			}).
			Then(1, event.
				ToEnvelope(&account.WasOpened{
					ID:       id,
					Holder:   holder,
					OpenedAt: now,
				}).
				WithTopic("accounts.opened"),
			).
			AssertOn(t)
	})

	t.Run("opening an account requires a holder name", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			When(func() (*account.Account, error) {
				return account.Open(id, "", now)
			}).
			ThenError(account.ErrInvalidHolder).
			AssertOn(t)
	})

	t.Run("money can be deposited on an open account", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			Given(event.Persisted{
				StreamID: event.StreamID{Type: "Account", Name: id.String()},
				Version:  1,
				Envelope: event.
					ToEnvelope(&account.WasOpened{
						ID:       id,
						Holder:   holder,
						OpenedAt: now,
					}).
					WithTopic("accounts.opened"),
			}).
			When(func(acc *account.Account) error {
				return acc.Deposit(10_00)
			}).
			Then(2, event.
				ToEnvelope(&account.MoneyWasDeposited{
					ID:     id,
					Amount: 10_00,
				}).
				WithTopic("accounts.deposited"),
			).
			AssertOn(t)
	})

	t.Run("deposits on an account that was never opened are rejected", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			When(func() (*account.Account, error) {
				acc := account.Type.Factory()
				return acc, acc.Deposit(10_00)
			}).
			ThenError(account.ErrNotOpenedYet).
			AssertOn(t)
	})

	t.Run("withdrawals are bounded by the current balance", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			Given(
				event.Persisted{
					StreamID: event.StreamID{Type: "Account", Name: id.String()},
					Version:  1,
					Envelope: event.
						ToEnvelope(&account.WasOpened{
							ID:       id,
							Holder:   holder,
							OpenedAt: now,
						}).
						WithTopic("accounts.opened"),
				},
				event.Persisted{
					StreamID: event.StreamID{Type: "Account", Name: id.String()},
					Version:  2,
					Envelope: event.
						ToEnvelope(&account.MoneyWasDeposited{
							ID:     id,
							Amount: 5_00,
						}).
						WithTopic("accounts.deposited"),
				},
			).
			When(func(acc *account.Account) error {
				return acc.Withdraw(10_00)
			}).
			ThenError(account.ErrInsufficientFunds).
			AssertOn(t)
	})

	t.Run("withdrawals within the balance are recorded", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			Given(
				event.Persisted{
					StreamID: event.StreamID{Type: "Account", Name: id.String()},
					Version:  1,
					Envelope: event.
						ToEnvelope(&account.WasOpened{
							ID:       id,
							Holder:   holder,
							OpenedAt: now,
						}).
						WithTopic("accounts.opened"),
				},
				event.Persisted{
					StreamID: event.StreamID{Type: "Account", Name: id.String()},
					Version:  2,
					Envelope: event.
						ToEnvelope(&account.MoneyWasDeposited{
							ID:     id,
							Amount: 5_00,
						}).
						WithTopic("accounts.deposited"),
				},
			).
			When(func(acc *account.Account) error {
				return acc.Withdraw(2_00)
			}).
			Then(3, event.
				ToEnvelope(&account.MoneyWasWithdrawn{
					ID:     id,
					Amount: 2_00,
				}).
				WithTopic("accounts.withdrawn"),
			).
			AssertOn(t)
	})

	t.Run("negative or zero amounts are always rejected", func(t *testing.T) {
		aggregate.
			Scenario(account.Type).
			Given(event.Persisted{
				StreamID: event.StreamID{Type: "Account", Name: id.String()},
				Version:  1,
				Envelope: event.
					ToEnvelope(&account.WasOpened{
						ID:       id,
						Holder:   holder,
						OpenedAt: now,
					}).
					WithTopic("accounts.opened"),
			}).
			When(func(acc *account.Account) error {
				return acc.Deposit(-1)
			}).
			ThenError(account.ErrInvalidAmount).
			AssertOn(t)
	})
}
