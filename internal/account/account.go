// Package account serves as a small domain example of how to model
// an event-sourced Aggregate using go-eventfold.
//
// This package is used for integration tests in the parent module.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/aggregate"
	"github.com/eventfold/go-eventfold/event"
)

// Type is the Account aggregate type.
var Type = aggregate.Type[uuid.UUID, *Account]{
	Name:    "Account",
	Factory: func() *Account { return new(Account) },
}

// Account is a naive bank account implementation, modeled as an Aggregate
// using go-eventfold's API.
type Account struct {
	aggregate.BaseRoot

	id       uuid.UUID
	holder   string
	balance  int64
	openedAt time.Time
}

// AggregateID implements aggregate.Root.
func (account *Account) AggregateID() uuid.UUID { return account.id }

// Holder returns the name of the Account holder.
func (account *Account) Holder() string { return account.holder }

// Balance returns the current Account balance, in cents.
func (account *Account) Balance() int64 { return account.balance }

// Apply implements aggregate.Aggregate.
func (account *Account) Apply(evt event.Event) error {
	switch evt := evt.(type) {
	case *WasOpened:
		account.id = evt.ID
		account.holder = evt.Holder
		account.openedAt = evt.OpenedAt
	case *MoneyWasDeposited:
		account.balance += evt.Amount
	case *MoneyWasWithdrawn:
		account.balance -= evt.Amount
	default:
		return fmt.Errorf("account.Apply: unexpected event type, %T", evt)
	}

	return nil
}

// All the errors returned by Account methods.
var (
	ErrInvalidHolder     = errors.New("account: invalid holder name, is empty")
	ErrInvalidAmount     = errors.New("account: invalid amount, must be positive")
	ErrInsufficientFunds = errors.New("account: insufficient funds")
	ErrNotOpenedYet      = errors.New("account: not opened yet")
)

// Open opens a new Account for the specified holder.
func Open(id uuid.UUID, holder string, now time.Time) (*Account, error) {
	if holder == "" {
		return nil, ErrInvalidHolder
	}

	account := new(Account)

	if err := aggregate.RecordThat(account, event.
		ToEnvelope(&WasOpened{
			ID:       id,
			Holder:   holder,
			OpenedAt: now,
		}).
		WithTopic("accounts.opened"),
	); err != nil {
		return nil, fmt.Errorf("account.Open: failed to record domain event, %w", err)
	}

	return account, nil
}

// Deposit adds the specified amount, in cents, to the Account balance.
func (account *Account) Deposit(amount int64) error {
	if account.id == uuid.Nil {
		return ErrNotOpenedYet
	}

	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := aggregate.RecordThat(account, event.
		ToEnvelope(&MoneyWasDeposited{
			ID:     account.id,
			Amount: amount,
		}).
		WithTopic("accounts.deposited"),
	); err != nil {
		return fmt.Errorf("account.Deposit: failed to record domain event, %w", err)
	}

	return nil
}

// Withdraw removes the specified amount, in cents, from the Account balance.
//
// ErrInsufficientFunds is returned when the Account balance would go negative.
func (account *Account) Withdraw(amount int64) error {
	if account.id == uuid.Nil {
		return ErrNotOpenedYet
	}

	if amount <= 0 {
		return ErrInvalidAmount
	}

	if account.balance < amount {
		return ErrInsufficientFunds
	}

	if err := aggregate.RecordThat(account, event.
		ToEnvelope(&MoneyWasWithdrawn{
			ID:     account.id,
			Amount: amount,
		}).
		WithTopic("accounts.withdrawn"),
	); err != nil {
		return fmt.Errorf("account.Withdraw: failed to record domain event, %w", err)
	}

	return nil
}
