package account

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/serde"
)

// snapshotState is the storage representation of an Account snapshot.
type snapshotState struct {
	ID       uuid.UUID `json:"id"`
	Holder   string    `json:"holder"`
	Balance  int64     `json:"balance"`
	OpenedAt time.Time `json:"opened_at"`
}

// SnapshotSerde is the serde.Bytes implementation used to record and restore
// Account snapshots.
var SnapshotSerde = serde.Fused[*Account, []byte]{
	Serializer:   serde.SerializerFunc[*Account, []byte](snapshotSerializer),
	Deserializer: serde.DeserializerFunc[*Account, []byte](snapshotDeserializer),
}

func snapshotSerializer(account *Account) ([]byte, error) {
	data, err := json.Marshal(snapshotState{
		ID:       account.id,
		Holder:   account.holder,
		Balance:  account.balance,
		OpenedAt: account.openedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("account.snapshotSerializer: failed to marshal state, %w", err)
	}

	return data, nil
}

func snapshotDeserializer(data []byte) (*Account, error) {
	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("account.snapshotDeserializer: failed to unmarshal state, %w", err)
	}

	return &Account{
		id:       state.ID,
		holder:   state.Holder,
		balance:  state.Balance,
		openedAt: state.OpenedAt,
	}, nil
}

// NewEventRegistry returns a serde.Registry with all the Account domain
// events registered, ready to be used by durable Event Store implementations.
func NewEventRegistry() (*serde.Registry, error) {
	registry := serde.NewRegistry()

	if err := registry.Register(
		new(WasOpened),
		new(MoneyWasDeposited),
		new(MoneyWasWithdrawn),
	); err != nil {
		return nil, fmt.Errorf("account.NewEventRegistry: failed to register domain events, %w", err)
	}

	return registry, nil
}
