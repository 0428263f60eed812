package models

import "github.com/mmynk/tally/internal/money"

// SplitType identifies the policy used to divide an expense among its
// participants. It is a closed set; the ledger rejects anything else.
type SplitType string

const (
	// SplitEqual divides the amount evenly, extra minor units going to the
	// first participants in ascending ID order.
	SplitEqual SplitType = "equal"

	// SplitExact uses the amount each share carries; shares must sum exactly
	// to the expense amount.
	SplitExact SplitType = "exact"

	// SplitPercentage uses the percentage each share carries (basis points);
	// percentages must sum to exactly 100%.
	SplitPercentage SplitType = "percentage"
)

// WholePercent is 100% expressed in basis points, the unit used by
// SplitPercentage shares.
const WholePercent int64 = 10_000

// SplitShare is one participant's entry in an expense's split rule.
// Amount is read for exact splits, Percent (basis points) for percentage
// splits; equal splits use neither.
type SplitShare struct {
	// PersonID identifies the participant.
	PersonID string

	// Amount is this participant's exact share in minor units.
	Amount money.Money

	// Percent is this participant's share in basis points (10000 = 100%).
	Percent int64
}

// Expense represents one recorded expense. Expenses are immutable once
// recorded; edits are modeled as compensating entries.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is a human-readable label (e.g., "Groceries").
	Description string

	// Amount is the full expense amount in minor units. Always positive.
	Amount money.Money

	// PayerID is the person who paid. The payer need not appear in Shares;
	// if absent they are purely a creditor for this expense.
	PayerID string

	// Date is the calendar date of the expense in ISO form (2006-01-02).
	Date string

	// SplitType selects how Amount is divided among Shares.
	SplitType SplitType

	// Shares lists the participants and their split-rule inputs. Non-empty.
	Shares []SplitShare

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// Contribution is one participant's debt from one expense: the participant
// owes their share to the expense's payer. Derived, never stored.
type Contribution struct {
	// Debtor is the participant who owes.
	Debtor string

	// Creditor is the payer who is owed.
	Creditor string

	// Amount is the share owed, in minor units. Always positive.
	Amount money.Money
}
