// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
	"github.com/mmynk/tally/internal/storage"
)

var _ storage.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS persons (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    email TEXT,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL,
    description TEXT NOT NULL,
    amount BIGINT NOT NULL,
    payer_id TEXT NOT NULL REFERENCES persons(id),
    expense_date TEXT NOT NULL,
    split_type TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_shares (
    expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
    person_id TEXT NOT NULL REFERENCES persons(id),
    amount BIGINT NOT NULL DEFAULT 0,
    percent BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (expense_id, person_id)
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL,
    from_id TEXT NOT NULL REFERENCES persons(id),
    to_id TEXT NOT NULL REFERENCES persons(id),
    amount BIGINT NOT NULL,
    note TEXT,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_payer_id ON expenses(payer_id);
CREATE INDEX IF NOT EXISTS idx_expense_shares_person_id ON expense_shares(person_id);
`

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// New opens a connection with the given DSN, verifies it, and ensures the
// schema exists.
func New(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreatePerson inserts a new person.
func (s *PostgresStore) CreatePerson(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	if person.CreatedAt == 0 {
		person.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO persons (id, display_name, email, created_at) VALUES ($1, $2, $3, $4)",
		person.ID, person.DisplayName, person.Email, person.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID.
func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	person := &models.Person{}
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, created_at FROM persons WHERE id = $1",
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
func (s *PostgresStore) ListPersons(ctx context.Context) ([]*models.Person, error) {
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
func (s *PostgresStore) DeletePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = $1", id)
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
func (s *PostgresStore) CountPersonRefs(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM expenses WHERE payer_id = $1) +
			(SELECT COUNT(*) FROM expense_shares WHERE person_id = $1) +
			(SELECT COUNT(*) FROM settlements WHERE from_id = $1 OR to_id = $1)`,
		id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count person references: %w", err)
	}
	return count, nil
}

// AppendExpense persists a new expense and its shares in one transaction.
func (s *PostgresStore) AppendExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount, payer_id, expense_date, split_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		expense.ID, expense.Description, int64(expense.Amount), expense.PayerID,
		expense.Date, string(expense.SplitType), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, share := range expense.Shares {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, person_id, amount, percent) VALUES ($1, $2, $3, $4)",
			expense.ID, share.PersonID, int64(share.Amount), share.Percent,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense share: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListExpenses retrieves the full expense log in recording order.
func (s *PostgresStore) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, amount, payer_id, expense_date, split_type, created_at
		 FROM expenses ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense := &models.Expense{}
		var amount int64
		var splitType string
		if err := rows.Scan(&expense.ID, &expense.Description, &amount, &expense.PayerID,
			&expense.Date, &splitType, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expense.Amount = money.Money(amount)
		expense.SplitType = models.SplitType(splitType)
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, expense := range expenses {
		shareRows, err := s.db.QueryContext(ctx,
			"SELECT person_id, amount, percent FROM expense_shares WHERE expense_id = $1 ORDER BY person_id",
			expense.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get expense shares: %w", err)
		}
		for shareRows.Next() {
			var share models.SplitShare
			var amount int64
			if err := shareRows.Scan(&share.PersonID, &amount, &share.Percent); err != nil {
				shareRows.Close()
				return nil, fmt.Errorf("failed to scan expense share: %w", err)
			}
			share.Amount = money.Money(amount)
			expense.Shares = append(expense.Shares, share)
		}
		shareRows.Close()
		if err := shareRows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate expense shares: %w", err)
		}
	}

	return expenses, nil
}

// CreateSettlement persists a recorded settle-up payment.
func (s *PostgresStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	var note interface{}
	if settlement.Note != "" {
		note = settlement.Note
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, from_id, to_id, amount, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		settlement.ID, settlement.FromID, settlement.ToID,
		int64(settlement.Amount), note, settlement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// ListSettlements retrieves all recorded settlements in recording order.
func (s *PostgresStore) ListSettlements(ctx context.Context) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, amount, note, created_at
		 FROM settlements ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		var amount int64
		var note sql.NullString
		if err := rows.Scan(&settlement.ID, &settlement.FromID, &settlement.ToID,
			&amount, &note, &settlement.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlement.Amount = money.Money(amount)
		if note.Valid {
			settlement.Note = note.String
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// AppendEvent persists an audit-log event.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, payload, created_at) VALUES ($1, $2, $3, $4)",
		event.ID, string(event.Type), event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Reset truncates all tables. Order matters due to foreign keys.
func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"TRUNCATE TABLE expense_shares, settlements, expenses, events, persons RESTART IDENTITY CASCADE",
	)
	if err != nil {
		return fmt.Errorf("failed to reset tables: %w", err)
	}
	return nil
}
