// Package settle turns a set of net positions into a settlement plan: the
// smallest list of transfers that drives every position to exactly zero.
//
// Finding the true minimum transfer count is a combinatorial search (it
// reduces to partitioning the balances into as many zero-sum groups as
// possible), so the planner runs an exhaustive search under a fixed step
// budget and falls back to a greedy largest-debtor/largest-creditor matching
// when the budget runs out. The greedy plan is always correct, just not
// guaranteed minimal.
package settle

import (
	"errors"
	"sort"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
)

// ErrInfeasible means the net positions do not sum to zero. That can only
// happen through an upstream bug or data corruption; the planner never
// corrects it silently.
var ErrInfeasible = errors.New("settle: net positions do not sum to zero")

// DefaultBudget is the number of search steps the exhaustive planner may
// spend before degrading to the greedy plan.
const DefaultBudget = 2_000_000

// entry is one nonzero balance. amount > 0 means the person is owed money.
type entry struct {
	id     string
	amount int64
}

// PlanTransfers computes a settlement plan for the given net positions.
// budget bounds the exhaustive search; pass 0 for DefaultBudget. Ties between
// equal magnitudes are broken by ascending person ID, so identical inputs
// always produce identical plans.
func PlanTransfers(positions map[string]money.Money, budget int) (models.Plan, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	entries := make([]entry, 0, len(positions))
	var sum money.Money
	for id, pos := range positions {
		next, err := sum.Add(pos)
		if err != nil {
			return models.Plan{}, err
		}
		sum = next
		if !pos.IsZero() {
			entries = append(entries, entry{id: id, amount: int64(pos)})
		}
	}
	if sum != 0 {
		return models.Plan{}, ErrInfeasible
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	if len(entries) == 0 {
		return models.Plan{Transfers: []models.Transfer{}, Optimal: true}, nil
	}

	p := &planner{budget: budget}
	balances := make([]int64, len(entries))
	for i, e := range entries {
		balances[i] = e.amount
	}
	transfers, ok := p.minimize(entries, balances)
	if !ok {
		return models.Plan{Transfers: greedy(entries), Optimal: false}, nil
	}
	return models.Plan{Transfers: transfers, Optimal: true}, nil
}

type planner struct {
	steps  int
	budget int
}

// minimize finds a minimum-length transfer list zeroing the balances. It
// settles the first nonzero balance against each later opposite-signed
// balance in turn and recurses on the residue, keeping the shortest result.
// Returns ok=false as soon as the step budget is exhausted.
func (p *planner) minimize(entries []entry, balances []int64) ([]models.Transfer, bool) {
	p.steps++
	if p.steps > p.budget {
		return nil, false
	}

	first := -1
	for i, b := range balances {
		if b != 0 {
			first = i
			break
		}
	}
	if first < 0 {
		return []models.Transfer{}, true
	}

	var best []models.Transfer
	seen := make(map[int64]bool)
	for j := first + 1; j < len(balances); j++ {
		if balances[j] == 0 || (balances[j] > 0) == (balances[first] > 0) {
			continue
		}
		if seen[balances[j]] {
			// Settling against an equal balance explores an identical subtree.
			continue
		}
		seen[balances[j]] = true

		moved := balances[first]
		balances[j] += moved
		balances[first] = 0
		rest, ok := p.minimize(entries, balances)
		balances[first] = moved
		balances[j] -= moved
		if !ok {
			return nil, false
		}

		if best != nil && len(rest)+1 >= len(best) {
			continue
		}
		cand := make([]models.Transfer, 0, len(rest)+1)
		cand = append(cand, transferBetween(entries[first], entries[j], moved))
		cand = append(cand, rest...)
		best = cand
	}
	return best, true
}

// transferBetween settles the whole of `moved` (the first entry's balance)
// against the other entry. A negative balance means the person owes, so they
// are the sender.
func transferBetween(a, b entry, moved int64) models.Transfer {
	if moved < 0 {
		return models.Transfer{From: a.id, To: b.id, Amount: money.Money(-moved)}
	}
	return models.Transfer{From: b.id, To: a.id, Amount: money.Money(moved)}
}

// greedy repeatedly matches the largest outstanding debtor with the largest
// outstanding creditor, transferring the smaller magnitude. It always
// terminates with at most n-1 transfers and zeroes every balance, but the
// count is not guaranteed minimal. Ties break by ascending ID because the
// entries arrive sorted.
func greedy(entries []entry) []models.Transfer {
	balances := make([]int64, len(entries))
	for i, e := range entries {
		balances[i] = e.amount
	}

	var transfers []models.Transfer
	for {
		debtor, creditor := -1, -1
		for i, b := range balances {
			if b < 0 && (debtor < 0 || b < balances[debtor]) {
				debtor = i
			}
			if b > 0 && (creditor < 0 || b > balances[creditor]) {
				creditor = i
			}
		}
		if debtor < 0 || creditor < 0 {
			break
		}

		amount := -balances[debtor]
		if balances[creditor] < amount {
			amount = balances[creditor]
		}
		balances[debtor] += amount
		balances[creditor] -= amount
		transfers = append(transfers, models.Transfer{
			From:   entries[debtor].id,
			To:     entries[creditor].id,
			Amount: money.Money(amount),
		})
	}
	return transfers
}
