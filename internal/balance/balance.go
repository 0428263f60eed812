// Package balance folds debt contributions and recorded settlements into net
// pairwise balances and per-person net positions. All arithmetic is checked;
// the aggregator never rounds or drops amounts silently.
package balance

import (
	"fmt"
	"sort"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
)

// pairKey orders the two people of an unordered pair.
type pairKey struct {
	lo, hi string
}

// Pairwise collapses all contributions between each pair of people into a
// single directed balance. A settlement payment from A to B reduces whatever
// A owes B, exactly like a contribution owed in the opposite direction. Pairs
// that net to zero are dropped; the result is sorted by (debtor, creditor)
// so repeated reads are identical.
func Pairwise(contribs []models.Contribution, settlements []models.Settlement) ([]models.PairBalance, error) {
	// net[key] is the signed amount lo owes hi.
	net := make(map[pairKey]money.Money)

	add := func(debtor, creditor string, amount money.Money) error {
		if debtor == creditor {
			return nil
		}
		key := pairKey{debtor, creditor}
		signed := amount
		if key.lo > key.hi {
			key.lo, key.hi = key.hi, key.lo
			neg, err := amount.Neg()
			if err != nil {
				return err
			}
			signed = neg
		}
		sum, err := net[key].Add(signed)
		if err != nil {
			return err
		}
		net[key] = sum
		return nil
	}

	for _, c := range contribs {
		if err := add(c.Debtor, c.Creditor, c.Amount); err != nil {
			return nil, fmt.Errorf("aggregating contribution %s -> %s: %w", c.Debtor, c.Creditor, err)
		}
	}
	for _, s := range settlements {
		// The payment flows from debtor to creditor, so it nets out as the
		// creditor "owing" it back.
		if err := add(s.ToID, s.FromID, s.Amount); err != nil {
			return nil, fmt.Errorf("aggregating settlement %s -> %s: %w", s.FromID, s.ToID, err)
		}
	}

	balances := make([]models.PairBalance, 0, len(net))
	for key, amount := range net {
		switch {
		case amount > 0:
			balances = append(balances, models.PairBalance{Debtor: key.lo, Creditor: key.hi, Amount: amount})
		case amount < 0:
			abs, err := amount.Abs()
			if err != nil {
				return nil, err
			}
			balances = append(balances, models.PairBalance{Debtor: key.hi, Creditor: key.lo, Amount: abs})
		}
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Debtor != balances[j].Debtor {
			return balances[i].Debtor < balances[j].Debtor
		}
		return balances[i].Creditor < balances[j].Creditor
	})
	return balances, nil
}

// Positions computes each person's net position: positive means the person is
// owed money, negative means they owe. The sum over all people is always
// exactly zero; no money is created or destroyed by aggregation.
func Positions(contribs []models.Contribution, settlements []models.Settlement) (map[string]money.Money, error) {
	positions := make(map[string]money.Money)

	credit := func(id string, amount money.Money) error {
		sum, err := positions[id].Add(amount)
		if err != nil {
			return err
		}
		positions[id] = sum
		return nil
	}
	debit := func(id string, amount money.Money) error {
		sum, err := positions[id].Sub(amount)
		if err != nil {
			return err
		}
		positions[id] = sum
		return nil
	}

	for _, c := range contribs {
		if err := credit(c.Creditor, c.Amount); err != nil {
			return nil, err
		}
		if err := debit(c.Debtor, c.Amount); err != nil {
			return nil, err
		}
	}
	for _, s := range settlements {
		// Paying down a debt improves the payer's position and reduces how
		// much the receiver is still owed.
		if err := credit(s.FromID, s.Amount); err != nil {
			return nil, err
		}
		if err := debit(s.ToID, s.Amount); err != nil {
			return nil, err
		}
	}
	return positions, nil
}
