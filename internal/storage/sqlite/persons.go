package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

// CreatePerson inserts a new person into the database.
func (s *SQLiteStore) CreatePerson(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	if person.CreatedAt == 0 {
		person.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO persons (id, display_name, email, created_at) VALUES (?, ?, ?, ?)",
		person.ID, person.DisplayName, person.Email, person.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID.
func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	person := &models.Person{}
	var email sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, created_at FROM persons WHERE id = ?",
		id,
	).Scan(&person.ID, &person.DisplayName, &email, &person.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("person %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	if email.Valid {
		person.Email = email.String
	}
	return person, nil
}

// ListPersons retrieves all persons ordered by display name.
func (s *SQLiteStore) ListPersons(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, email, created_at FROM persons ORDER BY display_name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		person := &models.Person{}
		var email sql.NullString
		if err := rows.Scan(&person.ID, &person.DisplayName, &email, &person.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		if email.Valid {
			person.Email = email.String
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}
	return persons, nil
}

// DeletePerson removes a person by ID.
func (s *SQLiteStore) DeletePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("person %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CountPersonRefs reports how many ledger records reference the person.
func (s *SQLiteStore) CountPersonRefs(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM expenses WHERE payer_id = ?) +
			(SELECT COUNT(*) FROM expense_shares WHERE person_id = ?) +
			(SELECT COUNT(*) FROM settlements WHERE from_id = ? OR to_id = ?)`,
		id, id, id, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count person references: %w", err)
	}
	return count, nil
}
