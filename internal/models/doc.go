// Package models defines the core domain models for Tally.
//
// # Persisted Models
//
//   - Person: a registered member of the group
//   - Expense: one recorded expense with its split rule
//   - Settlement: a recorded settle-up payment between two people
//   - Event: an audit-log entry for ledger mutations
//
// # Derived Models
//
// The following are never stored; they are pure functions of the ledger and
// are recomputed on read:
//
//   - Contribution: one participant's share of one expense, owed to the payer
//   - PairBalance: the net amount one person owes another
//   - Transfer / Plan: the settlement plan that zeroes all balances
//
// # Design Principles
//
// 1. **Exact arithmetic**: all amounts are money.Money (minor units), never floats
// 2. **Append-only ledger**: expenses are immutable once recorded; corrections
//    are compensating entries
// 3. **Avoid circular references**: models reference each other by ID strings
package models
