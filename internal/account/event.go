package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/event"
)

var (
	_ event.Event = new(WasOpened)
	_ event.Event = new(MoneyWasDeposited)
	_ event.Event = new(MoneyWasWithdrawn)
)

// WasOpened is the domain event fired after an Account is opened.
type WasOpened struct {
	ID       uuid.UUID
	Holder   string
	OpenedAt time.Time
}

// Name implements message.Message.
func (*WasOpened) Name() string { return "AccountWasOpened" }

// MoneyWasDeposited is the domain event fired after money is deposited
// on an Account.
type MoneyWasDeposited struct {
	ID     uuid.UUID
	Amount int64
}

// Name implements message.Message.
func (*MoneyWasDeposited) Name() string { return "AccountMoneyWasDeposited" }

// MoneyWasWithdrawn is the domain event fired after money is withdrawn
// from an Account.
type MoneyWasWithdrawn struct {
	ID     uuid.UUID
	Amount int64
}

// Name implements message.Message.
func (*MoneyWasWithdrawn) Name() string { return "AccountMoneyWasWithdrawn" }
