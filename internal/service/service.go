// Package service wires the engine together behind a single facade. It owns
// the store, serializes writes, and gives reads a consistent snapshot of the
// ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmynk/tally/internal/balance"
	"github.com/mmynk/tally/internal/events"
	"github.com/mmynk/tally/internal/ledger"
	"github.com/mmynk/tally/internal/metrics"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
	"github.com/mmynk/tally/internal/registry"
	"github.com/mmynk/tally/internal/settle"
	"github.com/mmynk/tally/internal/storage"
)

// planRetries bounds how many times a plan computation is redone when writes
// land mid-computation before giving up on a stable snapshot.
const planRetries = 3

// Balances bundles the two read views of the same ledger state.
type Balances struct {
	Pairwise  []models.PairBalance
	Positions map[string]money.Money
}

// HistoryRole describes how a person relates to an expense.
type HistoryRole string

const (
	RolePayer       HistoryRole = "payer"
	RoleParticipant HistoryRole = "participant"
)

// HistoryEntry is one expense seen from a single person's point of view.
type HistoryEntry struct {
	Expense *models.Expense
	Role    HistoryRole
	Share   money.Money
}

// LedgerService is the facade over registry, ledger, balances, and planning.
// All writes serialize under mu and bump version; reads are lock-free and
// detect interleaved writes via the version counter.
type LedgerService struct {
	store    storage.Store
	registry *registry.Registry
	events   *events.Worker
	logger   *slog.Logger
	budget   int

	mu      sync.Mutex
	version atomic.Int64
}

// New creates a LedgerService. budget bounds the settlement planner's
// exhaustive search; zero or less selects settle.DefaultBudget.
func New(store storage.Store, reg *registry.Registry, worker *events.Worker, logger *slog.Logger, budget int) *LedgerService {
	if budget <= 0 {
		budget = settle.DefaultBudget
	}
	return &LedgerService{
		store:    store,
		registry: reg,
		events:   worker,
		logger:   logger,
		budget:   budget,
	}
}

// RegisterPerson adds a participant.
func (s *LedgerService) RegisterPerson(ctx context.Context, displayName, email string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, err := s.registry.Register(ctx, displayName, email)
	if err != nil {
		return nil, err
	}
	s.version.Add(1)
	s.events.Log(models.EventPersonRegistered, person)
	return person, nil
}

// ListPersons returns all registered participants.
func (s *LedgerService) ListPersons(ctx context.Context) ([]*models.Person, error) {
	return s.registry.List(ctx)
}

// GetPerson looks up a participant by ID.
func (s *LedgerService) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	return s.registry.Resolve(ctx, id)
}

// RemovePerson deletes a participant that no ledger record references.
func (s *LedgerService) RemovePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Remove(ctx, id); err != nil {
		return err
	}
	s.version.Add(1)
	s.events.Log(models.EventPersonRemoved, map[string]string{"person_id": id})
	return nil
}

// RecordExpense validates the expense, resolves every referenced person, and
// appends it to the ledger. The split is resolved once up front so a bad
// expense never reaches the store. Validation runs under the write lock:
// resolving IDs outside it would let a concurrent RemovePerson slip between
// the existence check and the append, leaving the ledger referencing a
// deleted person.
func (s *LedgerService) RecordExpense(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []string{expense.PayerID}
	for _, share := range expense.Shares {
		ids = append(ids, share.PersonID)
	}
	if err := s.registry.ResolveAll(ctx, ids); err != nil {
		return nil, err
	}
	if _, err := ledger.Resolve(expense); err != nil {
		return nil, err
	}

	if err := s.store.AppendExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to record expense: %w", err)
	}
	s.version.Add(1)
	metrics.ExpensesRecorded.Inc()
	s.events.Log(models.EventExpenseRecorded, expense)
	s.logger.Info("expense recorded",
		"id", expense.ID, "payer", expense.PayerID,
		"amount", expense.Amount.String(), "split", expense.SplitType)
	return expense, nil
}

// ListExpenses returns the full expense log in recording order.
func (s *LedgerService) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	return s.store.ListExpenses(ctx)
}

// RecordSettlement records a settle-up payment between two participants.
// Party resolution happens under the write lock for the same reason as
// RecordExpense.
func (s *LedgerService) RecordSettlement(ctx context.Context, settlement *models.Settlement) (*models.Settlement, error) {
	if !settlement.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Err: ledger.ErrNonPositiveAmount}
	}
	if settlement.FromID == settlement.ToID {
		return nil, &ledger.ValidationError{Field: "to_id", Err: errors.New("payer and receiver must differ")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.ResolveAll(ctx, []string{settlement.FromID, settlement.ToID}); err != nil {
		return nil, err
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, fmt.Errorf("failed to record settlement: %w", err)
	}
	s.version.Add(1)
	metrics.SettlementsRecorded.Inc()
	s.events.Log(models.EventSettlementRecorded, settlement)
	s.logger.Info("settlement recorded",
		"id", settlement.ID, "from", settlement.FromID,
		"to", settlement.ToID, "amount", settlement.Amount.String())
	return settlement, nil
}

// ListSettlements returns all recorded settlements in recording order.
func (s *LedgerService) ListSettlements(ctx context.Context) ([]*models.Settlement, error) {
	return s.store.ListSettlements(ctx)
}

// NetBalances computes the pairwise balances and net positions over the whole
// ledger with recorded settlements folded in.
func (s *LedgerService) NetBalances(ctx context.Context) (*Balances, error) {
	contribs, settlements, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	pairwise, err := balance.Pairwise(contribs, settlements)
	if err != nil {
		return nil, err
	}
	positions, err := balance.Positions(contribs, settlements)
	if err != nil {
		return nil, err
	}
	return &Balances{Pairwise: pairwise, Positions: positions}, nil
}

// SettlementPlan computes the minimal set of transfers that zeroes all
// positions. If a write lands while the plan is being computed, the result
// would describe a ledger that no longer exists, so the computation reloads
// and retries.
func (s *LedgerService) SettlementPlan(ctx context.Context) (models.Plan, error) {
	var plan models.Plan
	for attempt := 0; attempt <= planRetries; attempt++ {
		before := s.version.Load()

		contribs, settlements, err := s.snapshot(ctx)
		if err != nil {
			return models.Plan{}, err
		}
		positions, err := balance.Positions(contribs, settlements)
		if err != nil {
			return models.Plan{}, err
		}
		plan, err = settle.PlanTransfers(positions, s.budget)
		if err != nil {
			return models.Plan{}, err
		}
		metrics.PlanComputations.Inc()
		if !plan.Optimal {
			metrics.PlanFallbacks.Inc()
			s.logger.Warn("plan search budget exhausted, returning greedy plan",
				"positions", len(positions), "transfers", len(plan.Transfers))
		}

		if s.version.Load() == before {
			return plan, nil
		}
		s.logger.Debug("ledger changed during plan computation, retrying", "attempt", attempt)
	}
	// The ledger is churning faster than we can plan; the last plan is still
	// internally consistent, just possibly stale.
	return plan, nil
}

// PersonHistory returns every expense the person appears in, tagged with
// their role and resolved share.
func (s *LedgerService) PersonHistory(ctx context.Context, personID string) ([]HistoryEntry, error) {
	if _, err := s.registry.Resolve(ctx, personID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}

	var history []HistoryEntry
	for _, expense := range expenses {
		shares, err := ledger.ShareAmounts(expense)
		if err != nil {
			return nil, fmt.Errorf("resolving stored expense %s: %w", expense.ID, err)
		}
		if expense.PayerID == personID {
			// Share is the payer's own consumed portion, zero if they only paid.
			history = append(history, HistoryEntry{Expense: expense, Role: RolePayer, Share: shares[personID]})
			continue
		}
		if share, ok := shares[personID]; ok {
			history = append(history, HistoryEntry{Expense: expense, Role: RoleParticipant, Share: share})
		}
	}
	return history, nil
}

// Reset wipes every record. Exposed for the admin endpoint and tests.
func (s *LedgerService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	s.version.Add(1)
	s.logger.Info("ledger reset")
	return nil
}

// snapshot loads the expense log and settlements and resolves every expense
// into contributions. Stored expenses were validated at record time, so a
// resolution failure here means the store is corrupt.
func (s *LedgerService) snapshot(ctx context.Context) ([]models.Contribution, []models.Settlement, error) {
	expenses, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.store.ListSettlements(ctx)
	if err != nil {
		return nil, nil, err
	}

	var contribs []models.Contribution
	for _, expense := range expenses {
		cs, err := ledger.Resolve(expense)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving stored expense %s: %w", expense.ID, err)
		}
		contribs = append(contribs, cs...)
	}
	settlements := make([]models.Settlement, 0, len(stored))
	for _, settlement := range stored {
		settlements = append(settlements, *settlement)
	}
	return contribs, settlements, nil
}
