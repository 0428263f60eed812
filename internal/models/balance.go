package models

import "github.com/mmynk/tally/internal/money"

// PairBalance is the net amount one person owes another after collapsing all
// contributions and settlements between the two into a single direction.
// Amount is always positive; zero pairs are dropped.
type PairBalance struct {
	// Debtor is the person who owes.
	Debtor string

	// Creditor is the person who is owed.
	Creditor string

	// Amount is the net amount owed, in minor units.
	Amount money.Money
}

// Transfer is one payment in a settlement plan.
type Transfer struct {
	// From is the person sending money.
	From string

	// To is the person receiving money.
	To string

	// Amount is the payment amount in minor units. Always positive.
	Amount money.Money
}

// Plan is a list of transfers that drives every net position to zero.
// Optimal reports whether the transfer count is provably minimal; when the
// planner's search budget runs out it falls back to a correct but possibly
// longer greedy plan and clears the flag.
type Plan struct {
	Transfers []Transfer
	Optimal   bool
}
