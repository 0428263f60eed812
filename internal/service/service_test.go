package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/tally/internal/events"
	"github.com/mmynk/tally/internal/ledger"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
	"github.com/mmynk/tally/internal/registry"
	"github.com/mmynk/tally/internal/storage"
	"github.com/mmynk/tally/internal/storage/memory"
)

func newTestService(t *testing.T) *LedgerService {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := events.NewWorker(store, logger, 16)
	worker.Start()
	t.Cleanup(worker.Shutdown)
	return New(store, registry.New(store), worker, logger, 0)
}

func registerPersons(t *testing.T, svc *LedgerService, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, name := range names {
		person, err := svc.RegisterPerson(context.Background(), name, "")
		if err != nil {
			t.Fatalf("RegisterPerson(%q) error = %v", name, err)
		}
		ids = append(ids, person.ID)
	}
	return ids
}

func equalExpense(payer string, amount money.Money, participants ...string) *models.Expense {
	shares := make([]models.SplitShare, 0, len(participants))
	for _, id := range participants {
		shares = append(shares, models.SplitShare{PersonID: id})
	}
	return &models.Expense{
		Description: "test expense",
		Amount:      amount,
		PayerID:     payer,
		Date:        "2026-08-29",
		SplitType:   models.SplitEqual,
		Shares:      shares,
	}
}

func TestRecordExpenseValidation(t *testing.T) {
	svc := newTestService(t)
	ids := registerPersons(t, svc, "Alice", "Bob")

	tests := []struct {
		name    string
		expense *models.Expense
		wantErr error
	}{
		{
			name:    "unknown payer",
			expense: equalExpense("nobody", 1000, ids[1]),
			wantErr: storage.ErrNotFound,
		},
		{
			name:    "unknown participant",
			expense: equalExpense(ids[0], 1000, "nobody"),
			wantErr: storage.ErrNotFound,
		},
		{
			name:    "zero amount",
			expense: equalExpense(ids[0], 0, ids[1]),
			wantErr: ledger.ErrNonPositiveAmount,
		},
		{
			name: "exact shares short of total",
			expense: &models.Expense{
				Description: "dinner",
				Amount:      10000,
				PayerID:     ids[0],
				Date:        "2026-08-29",
				SplitType:   models.SplitExact,
				Shares: []models.SplitShare{
					{PersonID: ids[0], Amount: 5000},
					{PersonID: ids[1], Amount: 4500},
				},
			},
			wantErr: ledger.ErrShareSumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordExpense(context.Background(), tt.expense)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RecordExpense() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	expenses, err := svc.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("got %d expenses after rejected writes, want 0", len(expenses))
	}
}

func TestBalancesAndPlan(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob", "Carol")
	a, b, c := ids[0], ids[1], ids[2]

	// Alice pays 90.00 split equally among all three, Bob pays 30.00 split
	// equally between Bob and Carol.
	if _, err := svc.RecordExpense(ctx, equalExpense(a, 9000, a, b, c)); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}
	if _, err := svc.RecordExpense(ctx, equalExpense(b, 3000, b, c)); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}

	balances, err := svc.NetBalances(ctx)
	if err != nil {
		t.Fatalf("NetBalances() error = %v", err)
	}
	wantPositions := map[string]money.Money{a: 6000, b: 1500, c: -7500}
	for id, want := range wantPositions {
		if got := balances.Positions[id]; got != want {
			t.Errorf("position[%s] = %d, want %d", id, got, want)
		}
	}

	plan, err := svc.SettlementPlan(ctx)
	if err != nil {
		t.Fatalf("SettlementPlan() error = %v", err)
	}
	if !plan.Optimal {
		t.Error("plan not marked optimal")
	}
	if len(plan.Transfers) != 2 {
		t.Fatalf("got %d transfers, want 2: %+v", len(plan.Transfers), plan.Transfers)
	}
	for _, tr := range plan.Transfers {
		if tr.From != c {
			t.Errorf("transfer from %s, want %s", tr.From, c)
		}
	}

	// Carol pays Alice in full; her remaining debt is only to Bob.
	if _, err := svc.RecordSettlement(ctx, &models.Settlement{FromID: c, ToID: a, Amount: 6000}); err != nil {
		t.Fatalf("RecordSettlement() error = %v", err)
	}
	balances, err = svc.NetBalances(ctx)
	if err != nil {
		t.Fatalf("NetBalances() error = %v", err)
	}
	if got := balances.Positions[a]; got != 0 {
		t.Errorf("position[alice] after settlement = %d, want 0", got)
	}
	if len(balances.Pairwise) != 1 {
		t.Fatalf("got %d pairwise balances, want 1: %+v", len(balances.Pairwise), balances.Pairwise)
	}
	pb := balances.Pairwise[0]
	if pb.Debtor != c || pb.Creditor != b || pb.Amount != 1500 {
		t.Errorf("pairwise = %+v, want %s owes %s 1500", pb, c, b)
	}
}

func TestReadIdempotence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob")

	if _, err := svc.RecordExpense(ctx, equalExpense(ids[0], 10000, ids[0], ids[1])); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}

	first, err := svc.NetBalances(ctx)
	if err != nil {
		t.Fatalf("NetBalances() error = %v", err)
	}
	second, err := svc.NetBalances(ctx)
	if err != nil {
		t.Fatalf("NetBalances() error = %v", err)
	}
	if len(first.Pairwise) != len(second.Pairwise) {
		t.Fatalf("consecutive reads differ: %+v vs %+v", first.Pairwise, second.Pairwise)
	}
	for i := range first.Pairwise {
		if first.Pairwise[i] != second.Pairwise[i] {
			t.Errorf("pairwise[%d] differs: %+v vs %+v", i, first.Pairwise[i], second.Pairwise[i])
		}
	}
}

func TestRecordSettlementValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob")

	if _, err := svc.RecordSettlement(ctx, &models.Settlement{FromID: ids[0], ToID: ids[0], Amount: 100}); err == nil {
		t.Error("self-settlement accepted, want error")
	}
	if _, err := svc.RecordSettlement(ctx, &models.Settlement{FromID: ids[0], ToID: ids[1], Amount: 0}); !errors.Is(err, ledger.ErrNonPositiveAmount) {
		t.Errorf("zero-amount settlement error = %v, want %v", err, ledger.ErrNonPositiveAmount)
	}
	if _, err := svc.RecordSettlement(ctx, &models.Settlement{FromID: ids[0], ToID: "nobody", Amount: 100}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown receiver error = %v, want %v", err, storage.ErrNotFound)
	}
}

// hookedStore wraps a Store and fires a hook once, on the first GetPerson
// call, to provoke interleavings mid-validation.
type hookedStore struct {
	storage.Store
	once        sync.Once
	onGetPerson func()
}

func (s *hookedStore) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.Store.GetPerson(ctx, id)
	if s.onGetPerson != nil {
		s.once.Do(s.onGetPerson)
	}
	return person, err
}

func TestRecordExpenseRemovalRace(t *testing.T) {
	hooked := &hookedStore{Store: memory.New()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := events.NewWorker(hooked, logger, 16)
	worker.Start()
	t.Cleanup(worker.Shutdown)
	svc := New(hooked, registry.New(hooked), worker, logger, 0)

	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob")
	a, b := ids[0], ids[1]

	// Fire a removal of Bob the moment expense validation resolves a person.
	// It must not land between the existence check and the append; it has to
	// wait for the write and then fail because Bob is now referenced.
	removeErr := make(chan error, 1)
	hooked.onGetPerson = func() {
		go func() { removeErr <- svc.RemovePerson(ctx, b) }()
		time.Sleep(50 * time.Millisecond)
	}

	if _, err := svc.RecordExpense(ctx, equalExpense(a, 1000, b)); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}

	select {
	case err := <-removeErr:
		if !errors.Is(err, registry.ErrReferentialConflict) {
			t.Errorf("RemovePerson() error = %v, want %v", err, registry.ErrReferentialConflict)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RemovePerson did not return within 5s")
	}

	// Bob must still exist; the ledger may never reference a deleted person.
	if _, err := svc.GetPerson(ctx, b); err != nil {
		t.Errorf("GetPerson(participant) error = %v, want nil", err)
	}
	expenses, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1", len(expenses))
	}
}

func TestRemovePersonReferentialConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob", "Carol")

	if _, err := svc.RecordExpense(ctx, equalExpense(ids[0], 3000, ids[0], ids[1])); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}

	if err := svc.RemovePerson(ctx, ids[0]); !errors.Is(err, registry.ErrReferentialConflict) {
		t.Errorf("RemovePerson(payer) error = %v, want %v", err, registry.ErrReferentialConflict)
	}
	if err := svc.RemovePerson(ctx, ids[1]); !errors.Is(err, registry.ErrReferentialConflict) {
		t.Errorf("RemovePerson(participant) error = %v, want %v", err, registry.ErrReferentialConflict)
	}
	if err := svc.RemovePerson(ctx, ids[2]); err != nil {
		t.Errorf("RemovePerson(unreferenced) error = %v", err)
	}

	persons, err := svc.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons() error = %v", err)
	}
	if len(persons) != 2 {
		t.Errorf("got %d persons after removal, want 2", len(persons))
	}
}

func TestPersonHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob", "Carol")
	a, b, c := ids[0], ids[1], ids[2]

	if _, err := svc.RecordExpense(ctx, equalExpense(a, 9000, a, b, c)); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}
	if _, err := svc.RecordExpense(ctx, equalExpense(b, 3000, b, c)); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}

	history, err := svc.PersonHistory(ctx, b)
	if err != nil {
		t.Fatalf("PersonHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2", len(history))
	}
	if history[0].Role != RoleParticipant || history[0].Share != 3000 {
		t.Errorf("first entry = role %s share %d, want participant 3000", history[0].Role, history[0].Share)
	}
	// Bob paid the second expense and also consumed half of it; his own share
	// must show up alongside the payer role.
	if history[1].Role != RolePayer || history[1].Share != 1500 {
		t.Errorf("second entry = role %s share %d, want payer 1500", history[1].Role, history[1].Share)
	}

	// Alice only appears in the first expense, as its payer, consuming a third.
	history, err = svc.PersonHistory(ctx, a)
	if err != nil {
		t.Fatalf("PersonHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d history entries for payer, want 1", len(history))
	}
	if history[0].Role != RolePayer || history[0].Share != 3000 {
		t.Errorf("payer entry = role %s share %d, want payer 3000", history[0].Role, history[0].Share)
	}

	if _, err := svc.PersonHistory(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("PersonHistory(unknown) error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := registerPersons(t, svc, "Alice", "Bob")

	if _, err := svc.RecordExpense(ctx, equalExpense(ids[0], 5000, ids[0], ids[1])); err != nil {
		t.Fatalf("RecordExpense() error = %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	expenses, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("got %d expenses after reset, want 0", len(expenses))
	}
	persons, err := svc.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons() error = %v", err)
	}
	if len(persons) != 0 {
		t.Errorf("got %d persons after reset, want 0", len(persons))
	}
}
