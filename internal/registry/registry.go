// Package registry manages the set of known participants. All expense and
// settlement operations resolve person IDs through it, so a misspelled or
// removed participant is caught before anything touches the ledger.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

var (
	// ErrEmptyName is returned when registering a person without a display name.
	ErrEmptyName = errors.New("registry: display name must not be empty")

	// ErrReferentialConflict is returned when removing a person that is still
	// referenced by expenses or settlements.
	ErrReferentialConflict = errors.New("registry: person is referenced by ledger records")
)

// Registry resolves and manages participants backed by a storage.Store.
type Registry struct {
	store storage.Store
}

// New creates a Registry on top of the given store.
func New(store storage.Store) *Registry {
	return &Registry{store: store}
}

// Register validates and persists a new participant, returning it with its
// assigned ID.
func (r *Registry) Register(ctx context.Context, displayName, email string) (*models.Person, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrEmptyName
	}
	person := &models.Person{
		DisplayName: displayName,
		Email:       strings.TrimSpace(email),
	}
	if err := r.store.CreatePerson(ctx, person); err != nil {
		return nil, fmt.Errorf("failed to register person: %w", err)
	}
	return person, nil
}

// Resolve looks up a participant by ID.
func (r *Registry) Resolve(ctx context.Context, id string) (*models.Person, error) {
	return r.store.GetPerson(ctx, id)
}

// ResolveAll looks up every ID in the given set, failing on the first unknown
// one.
func (r *Registry) ResolveAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := r.store.GetPerson(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns all registered participants.
func (r *Registry) List(ctx context.Context) ([]*models.Person, error) {
	return r.store.ListPersons(ctx)
}

// Remove deletes a participant. A person referenced by any expense or
// settlement cannot be removed; the ledger is append-only and its history
// must keep resolving.
func (r *Registry) Remove(ctx context.Context, id string) error {
	refs, err := r.store.CountPersonRefs(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check person references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("person %s has %d ledger references: %w", id, refs, ErrReferentialConflict)
	}
	return r.store.DeletePerson(ctx, id)
}
