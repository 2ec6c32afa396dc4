package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells income and expense apart.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// MaxAmount is the largest amount a single entry, limit or goal may hold.
var MaxAmount = decimal.New(1, 12)

// NormalizeAmount rounds d to cents and reports whether the result is
// positive and no larger than MaxAmount.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, bool) {
	d = d.Round(2)
	return d, d.IsPositive() && d.LessThanOrEqual(MaxAmount)
}

// GroupRole tags a transaction that was materialized by a group settlement.
type GroupRole string

const (
	GroupRoleNone          GroupRole = ""
	GroupRoleContribution  GroupRole = "group_contribution"
	GroupRoleReimbursement GroupRole = "group_reimbursement"
)

// Category labels used for transactions created by group settlement.
const (
	CategoryGroupContribution  = "group contribution"
	CategoryGroupReimbursement = "group reimbursement"
)

// Transaction is a single ledger entry.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// OwnerID is the User.ID that owns this entry.
	OwnerID string

	// Amount is always positive; Kind carries the sign.
	Amount decimal.Decimal

	Category string
	Note     string
	Kind     Kind

	// Date is when the money moved. Defaults to the creation time.
	Date time.Time

	// CreatedAt is the Unix timestamp when the entry was recorded.
	CreatedAt int64

	// GroupExpenseID links entries produced by settling a group expense.
	// Linked entries are audit references and cannot be edited or deleted.
	GroupExpenseID string
	GroupRole      GroupRole
}

// Linked reports whether the entry belongs to a settled group expense.
func (t *Transaction) Linked() bool {
	return t.GroupExpenseID != ""
}

// Signed returns the amount as income-positive, expense-negative.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Kind == KindExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
