// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tally/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store defines the interface for ledger storage operations. This abstraction
// allows swapping storage backends (in-memory, SQLite, PostgreSQL) without
// changing the engine. The expense log is append-only: implementations must
// return expenses in the order they were recorded and never rewrite them.
type Store interface {
	// CreatePerson persists a new person. The ID field is populated by the
	// store if empty.
	CreatePerson(ctx context.Context, person *models.Person) error

	// GetPerson retrieves a person by ID. Returns ErrNotFound if missing.
	GetPerson(ctx context.Context, id string) (*models.Person, error)

	// ListPersons retrieves all registered persons ordered by display name.
	ListPersons(ctx context.Context) ([]*models.Person, error)

	// DeletePerson removes a person by ID. Returns ErrNotFound if missing.
	// Callers are responsible for checking references first; the store does
	// not cascade.
	DeletePerson(ctx context.Context, id string) error

	// CountPersonRefs reports how many expenses and settlements reference
	// the person, as payer, participant, or settlement party.
	CountPersonRefs(ctx context.Context, id string) (int, error)

	// AppendExpense persists a new expense and its shares. The ID and
	// CreatedAt fields are populated by the store if empty.
	AppendExpense(ctx context.Context, expense *models.Expense) error

	// ListExpenses retrieves the full expense log in recording order.
	ListExpenses(ctx context.Context) ([]*models.Expense, error)

	// CreateSettlement persists a recorded settle-up payment.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// ListSettlements retrieves all recorded settlements in recording order.
	ListSettlements(ctx context.Context) ([]*models.Settlement, error)

	// AppendEvent persists an audit-log event.
	AppendEvent(ctx context.Context, event *models.Event) error

	// Reset deletes all data. Used by the admin reset endpoint and tests.
	Reset(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
