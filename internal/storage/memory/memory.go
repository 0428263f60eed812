// Package memory provides an in-memory implementation of the storage.Store
// interface, used as the default development backend and in tests. All reads
// return copies so callers can never observe a concurrent write in place.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

var _ storage.Store = (*MemoryStore)(nil)

// MemoryStore implements storage.Store with RWMutex-guarded maps and slices.
type MemoryStore struct {
	mtx         sync.RWMutex
	persons     map[string]*models.Person
	expenses    []*models.Expense
	settlements []*models.Settlement
	events      []*models.Event
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		persons: make(map[string]*models.Person),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// CreatePerson registers a new person.
func (s *MemoryStore) CreatePerson(_ context.Context, person *models.Person) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	if person.CreatedAt == 0 {
		person.CreatedAt = time.Now().Unix()
	}
	if _, exists := s.persons[person.ID]; exists {
		return fmt.Errorf("person %s already exists", person.ID)
	}
	clone := *person
	s.persons[person.ID] = &clone
	return nil
}

// GetPerson retrieves a person by ID.
func (s *MemoryStore) GetPerson(_ context.Context, id string) (*models.Person, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	person, ok := s.persons[id]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", id, storage.ErrNotFound)
	}
	clone := *person
	return &clone, nil
}

// ListPersons retrieves all persons ordered by display name.
func (s *MemoryStore) ListPersons(_ context.Context) ([]*models.Person, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	persons := make([]*models.Person, 0, len(s.persons))
	for _, person := range s.persons {
		clone := *person
		persons = append(persons, &clone)
	}
	sort.Slice(persons, func(i, j int) bool {
		if persons[i].DisplayName != persons[j].DisplayName {
			return persons[i].DisplayName < persons[j].DisplayName
		}
		return persons[i].ID < persons[j].ID
	})
	return persons, nil
}

// DeletePerson removes a person by ID.
func (s *MemoryStore) DeletePerson(_ context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.persons[id]; !ok {
		return fmt.Errorf("person %s: %w", id, storage.ErrNotFound)
	}
	delete(s.persons, id)
	return nil
}

// CountPersonRefs reports how many ledger records reference the person.
func (s *MemoryStore) CountPersonRefs(_ context.Context, id string) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	count := 0
	for _, expense := range s.expenses {
		if expense.PayerID == id {
			count++
		}
		for _, share := range expense.Shares {
			if share.PersonID == id {
				count++
			}
		}
	}
	for _, settlement := range s.settlements {
		if settlement.FromID == id || settlement.ToID == id {
			count++
		}
	}
	return count, nil
}

// AppendExpense appends a new expense to the log.
func (s *MemoryStore) AppendExpense(_ context.Context, expense *models.Expense) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	s.expenses = append(s.expenses, cloneExpense(expense))
	return nil
}

// ListExpenses retrieves the full expense log in recording order.
func (s *MemoryStore) ListExpenses(_ context.Context) ([]*models.Expense, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	expenses := make([]*models.Expense, len(s.expenses))
	for i, expense := range s.expenses {
		expenses[i] = cloneExpense(expense)
	}
	return expenses, nil
}

// CreateSettlement records a settle-up payment.
func (s *MemoryStore) CreateSettlement(_ context.Context, settlement *models.Settlement) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	clone := *settlement
	s.settlements = append(s.settlements, &clone)
	return nil
}

// ListSettlements retrieves all recorded settlements in recording order.
func (s *MemoryStore) ListSettlements(_ context.Context) ([]*models.Settlement, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	settlements := make([]*models.Settlement, len(s.settlements))
	for i, settlement := range s.settlements {
		clone := *settlement
		settlements[i] = &clone
	}
	return settlements, nil
}

// AppendEvent persists an audit-log event.
func (s *MemoryStore) AppendEvent(_ context.Context, event *models.Event) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	clone := *event
	s.events = append(s.events, &clone)
	return nil
}

// ListEvents retrieves all audit events in recording order. Not part of the
// storage.Store interface; tests use it to observe the event worker.
func (s *MemoryStore) ListEvents(_ context.Context) ([]*models.Event, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	events := make([]*models.Event, 0, len(s.events))
	for _, event := range s.events {
		clone := *event
		events = append(events, &clone)
	}
	return events, nil
}

// Reset deletes all data.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.persons = make(map[string]*models.Person)
	s.expenses = nil
	s.settlements = nil
	s.events = nil
	return nil
}

func cloneExpense(expense *models.Expense) *models.Expense {
	clone := *expense
	clone.Shares = make([]models.SplitShare, len(expense.Shares))
	copy(clone.Shares, expense.Shares)
	return &clone
}
