// Package ledger validates expenses and resolves their split rules into
// pairwise debt contributions. Resolution is deterministic: shares are
// processed in ascending participant-ID order, so remainder cents always land
// on the same people no matter how the caller ordered the input.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
)

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrUnknownSplitType     = errors.New("unknown split type")
	ErrShareSumMismatch     = errors.New("exact shares must sum to the expense amount")
	ErrPercentSumMismatch   = errors.New("percentages must sum to 100")
	ErrNegativeShare        = errors.New("shares cannot be negative")
	ErrPercentOutOfRange    = errors.New("percentage must be between 0 and 100")
	ErrUnknownPerson        = errors.New("person is not registered")
)

// ValidationError reports a malformed expense, naming the field at fault.
// It wraps one of the sentinel errors above so callers can match the cause
// with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid expense: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Resolve validates an expense and expands its split rule into debt
// contributions: one per participant share, owed to the payer. The payer's
// own share and zero-valued shares emit nothing. The input expense is not
// modified.
func Resolve(e *models.Expense) ([]models.Contribution, error) {
	shares, amounts, err := resolve(e)
	if err != nil {
		return nil, err
	}

	contribs := make([]models.Contribution, 0, len(shares))
	for i, share := range shares {
		if share.PersonID == e.PayerID || amounts[i].IsZero() {
			continue // self-debt is void
		}
		contribs = append(contribs, models.Contribution{
			Debtor:   share.PersonID,
			Creditor: e.PayerID,
			Amount:   amounts[i],
		})
	}
	return contribs, nil
}

// ShareAmounts validates an expense and returns every participant's resolved
// share keyed by person ID, including the payer's own share, which Resolve
// drops. Query surfaces use it to report what each person consumed.
func ShareAmounts(e *models.Expense) (map[string]money.Money, error) {
	shares, amounts, err := resolve(e)
	if err != nil {
		return nil, err
	}
	byPerson := make(map[string]money.Money, len(shares))
	for i, share := range shares {
		byPerson[share.PersonID] = amounts[i]
	}
	return byPerson, nil
}

// resolve validates the expense and computes the per-participant amounts,
// sorted ascending by participant ID.
func resolve(e *models.Expense) ([]models.SplitShare, []money.Money, error) {
	if !e.Amount.IsPositive() {
		return nil, nil, invalid("amount", ErrNonPositiveAmount)
	}
	if len(e.Shares) == 0 {
		return nil, nil, invalid("participants", ErrNoParticipants)
	}

	shares := make([]models.SplitShare, len(e.Shares))
	copy(shares, e.Shares)
	sort.Slice(shares, func(i, j int) bool { return shares[i].PersonID < shares[j].PersonID })
	for i := 1; i < len(shares); i++ {
		if shares[i].PersonID == shares[i-1].PersonID {
			return nil, nil, invalid("participants", ErrDuplicateParticipant)
		}
	}

	amounts, err := resolveShares(e, shares)
	if err != nil {
		return nil, nil, err
	}
	return shares, amounts, nil
}

// resolveShares computes each participant's share in minor units, in the
// order of the (already sorted) shares slice. The shares always sum exactly
// to the expense amount.
func resolveShares(e *models.Expense, shares []models.SplitShare) ([]money.Money, error) {
	switch e.SplitType {
	case models.SplitEqual:
		amounts, err := money.Allocate(e.Amount, len(shares))
		if err != nil {
			return nil, invalid("amount", err)
		}
		return amounts, nil

	case models.SplitExact:
		var sum money.Money
		for _, share := range shares {
			if share.Amount < 0 {
				return nil, invalid("shares", ErrNegativeShare)
			}
			next, err := sum.Add(share.Amount)
			if err != nil {
				return nil, invalid("shares", err)
			}
			sum = next
		}
		if sum != e.Amount {
			return nil, invalid("shares", ErrShareSumMismatch)
		}
		amounts := make([]money.Money, len(shares))
		for i, share := range shares {
			amounts[i] = share.Amount
		}
		return amounts, nil

	case models.SplitPercentage:
		ratios := make([]int64, len(shares))
		var sum int64
		for i, share := range shares {
			if share.Percent < 0 || share.Percent > models.WholePercent {
				return nil, invalid("shares", ErrPercentOutOfRange)
			}
			ratios[i] = share.Percent
			sum += share.Percent
		}
		if sum != models.WholePercent {
			return nil, invalid("shares", ErrPercentSumMismatch)
		}
		amounts, err := money.AllocateRatios(e.Amount, ratios)
		if err != nil {
			return nil, invalid("shares", err)
		}
		return amounts, nil

	default:
		return nil, invalid("splitType", ErrUnknownSplitType)
	}
}
