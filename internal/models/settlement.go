package models

import "github.com/mmynk/tally/internal/money"

// Settlement represents a recorded settle-up payment between two people.
// Recording a settlement does not rewrite the ledger; the balance aggregator
// folds it in as a reverse-direction amount.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// FromID is the person who paid (debtor settling up).
	FromID string

	// ToID is the person who received payment (creditor being paid).
	ToID string

	// Amount is the payment amount in minor units. Always positive.
	Amount money.Money

	// Note is an optional description for the settlement.
	Note string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}
