package models

import "github.com/shopspring/decimal"

// Participant is one member's position in a group expense.
type Participant struct {
	// MemberID is the platform user id of the member.
	MemberID    string
	DisplayName string

	// Paid is what the member actually put in.
	Paid decimal.Decimal

	// Share is what the member owes. Zero means not yet set.
	Share decimal.Decimal
}

// Balance is paid minus share. Positive means the member is owed money.
func (p Participant) Balance() decimal.Decimal {
	return p.Paid.Sub(p.Share)
}

// Label returns the display name, or the member id when no name is known.
func (p Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.MemberID
}

// GroupExpense is a shared bill in a chat group.
//
// Lifecycle is open -> settled, one way. While open, participants may be
// added and their paid/share edited; once settled the record and its
// participant list are frozen.
type GroupExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the chat group the expense lives in.
	GroupID string

	// CreatorID is the platform user id of the member who opened it.
	CreatorID string

	Total       decimal.Decimal
	Description string

	Participants []Participant

	Settled   bool
	SettledAt int64

	// TransactionIDs lists the ledger entries created on settlement.
	TransactionIDs []string

	CreatedAt int64
}

// Participant returns the entry for memberID, or nil.
func (g *GroupExpense) Participant(memberID string) *Participant {
	for i := range g.Participants {
		if g.Participants[i].MemberID == memberID {
			return &g.Participants[i]
		}
	}
	return nil
}

// SharesComplete reports whether there is at least one participant and
// every participant has a non-zero share.
func (g *GroupExpense) SharesComplete() bool {
	if len(g.Participants) == 0 {
		return false
	}
	for _, p := range g.Participants {
		if p.Share.IsZero() {
			return false
		}
	}
	return true
}

// TotalPaid sums what participants put in.
func (g *GroupExpense) TotalPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range g.Participants {
		sum = sum.Add(p.Paid)
	}
	return sum
}
