package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "tally-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	alice := &models.Person{DisplayName: "Alice", Email: "alice@example.com"}
	bob := &models.Person{DisplayName: "Bob"}

	t.Run("CreatePerson generates ID and timestamp", func(t *testing.T) {
		if err := store.CreatePerson(ctx, alice); err != nil {
			t.Fatalf("CreatePerson failed: %v", err)
		}
		if alice.ID == "" {
			t.Error("Expected person ID to be generated")
		}
		if alice.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
		if err := store.CreatePerson(ctx, bob); err != nil {
			t.Fatalf("CreatePerson failed: %v", err)
		}
	})

	t.Run("GetPerson round trip", func(t *testing.T) {
		got, err := store.GetPerson(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetPerson failed: %v", err)
		}
		if got.DisplayName != "Alice" || got.Email != "alice@example.com" {
			t.Errorf("got %+v, want Alice with email", got)
		}
	})

	t.Run("GetPerson returns ErrNotFound for unknown ID", func(t *testing.T) {
		_, err := store.GetPerson(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want storage.ErrNotFound", err)
		}
	})

	t.Run("ListPersons ordered by display name", func(t *testing.T) {
		persons, err := store.ListPersons(ctx)
		if err != nil {
			t.Fatalf("ListPersons failed: %v", err)
		}
		if len(persons) != 2 {
			t.Fatalf("got %d persons, want 2", len(persons))
		}
		if persons[0].DisplayName != "Alice" || persons[1].DisplayName != "Bob" {
			t.Errorf("unexpected order: %s, %s", persons[0].DisplayName, persons[1].DisplayName)
		}
	})

	t.Run("AppendExpense and ListExpenses round trip", func(t *testing.T) {
		expense := &models.Expense{
			Description: "Groceries",
			Amount:      10000,
			PayerID:     alice.ID,
			Date:        "2025-11-02",
			SplitType:   models.SplitEqual,
			Shares: []models.SplitShare{
				{PersonID: alice.ID},
				{PersonID: bob.ID},
			},
		}
		if err := store.AppendExpense(ctx, expense); err != nil {
			t.Fatalf("AppendExpense failed: %v", err)
		}
		if expense.ID == "" {
			t.Error("Expected expense ID to be generated")
		}

		expenses, err := store.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 1 {
			t.Fatalf("got %d expenses, want 1", len(expenses))
		}
		got := expenses[0]
		if got.Description != "Groceries" || got.Amount != 10000 ||
			got.PayerID != alice.ID || got.Date != "2025-11-02" ||
			got.SplitType != models.SplitEqual {
			t.Errorf("expense mismatch: %+v", got)
		}
		if len(got.Shares) != 2 {
			t.Errorf("got %d shares, want 2", len(got.Shares))
		}
	})

	t.Run("exact shares survive round trip", func(t *testing.T) {
		expense := &models.Expense{
			Description: "Dinner",
			Amount:      5000,
			PayerID:     alice.ID,
			Date:        "2025-11-03",
			SplitType:   models.SplitExact,
			Shares: []models.SplitShare{
				{PersonID: alice.ID, Amount: 2000},
				{PersonID: bob.ID, Amount: 3000},
			},
		}
		if err := store.AppendExpense(ctx, expense); err != nil {
			t.Fatalf("AppendExpense failed: %v", err)
		}

		expenses, err := store.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 2 {
			t.Fatalf("got %d expenses, want 2", len(expenses))
		}
		var total int64
		for _, share := range expenses[1].Shares {
			total += int64(share.Amount)
		}
		if total != 5000 {
			t.Errorf("shares sum to %d, want 5000", total)
		}
	})

	t.Run("CountPersonRefs counts payer, shares, and settlements", func(t *testing.T) {
		count, err := store.CountPersonRefs(ctx, alice.ID)
		if err != nil {
			t.Fatalf("CountPersonRefs failed: %v", err)
		}
		// Alice: 2 expenses as payer + 2 shares.
		if count != 4 {
			t.Errorf("Alice refs = %d, want 4", count)
		}

		settlement := &models.Settlement{FromID: bob.ID, ToID: alice.ID, Amount: 1500, Note: "partial"}
		if err := store.CreateSettlement(ctx, settlement); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
		count, err = store.CountPersonRefs(ctx, bob.ID)
		if err != nil {
			t.Fatalf("CountPersonRefs failed: %v", err)
		}
		// Bob: 2 shares + 1 settlement.
		if count != 3 {
			t.Errorf("Bob refs = %d, want 3", count)
		}
	})

	t.Run("ListSettlements round trip", func(t *testing.T) {
		settlements, err := store.ListSettlements(ctx)
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(settlements) != 1 {
			t.Fatalf("got %d settlements, want 1", len(settlements))
		}
		got := settlements[0]
		if got.FromID != bob.ID || got.ToID != alice.ID || got.Amount != 1500 || got.Note != "partial" {
			t.Errorf("settlement mismatch: %+v", got)
		}
	})

	t.Run("DeletePerson returns ErrNotFound for unknown ID", func(t *testing.T) {
		err := store.DeletePerson(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want storage.ErrNotFound", err)
		}
	})

	t.Run("AppendEvent persists", func(t *testing.T) {
		event := &models.Event{Type: models.EventExpenseRecorded, Payload: `{"expenseId":"x"}`}
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
		if event.ID == "" {
			t.Error("Expected event ID to be generated")
		}
	})

	t.Run("Reset clears everything", func(t *testing.T) {
		if err := store.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		persons, err := store.ListPersons(ctx)
		if err != nil {
			t.Fatalf("ListPersons failed: %v", err)
		}
		if len(persons) != 0 {
			t.Errorf("got %d persons after reset, want 0", len(persons))
		}
		expenses, err := store.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 0 {
			t.Errorf("got %d expenses after reset, want 0", len(expenses))
		}
	})
}
