// Package calculator holds the pure money arithmetic of the ledger:
// group debt netting and reporting time windows.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

// Epsilon is the smallest balance treated as non-zero.
var Epsilon = decimal.New(1, -2)

// MemberBalance is one participant's net position in a group expense.
type MemberBalance struct {
	MemberID    string
	DisplayName string
	Net         decimal.Decimal // Positive = owed money, Negative = owes money
}

// Transfer is a payment that clears part of a debt.
type Transfer struct {
	From     string // Member who owes
	FromName string
	To       string // Member who is owed
	ToName   string
	Amount   decimal.Decimal
}

// Balances returns paid - share per participant, merging repeated member
// ids, in first-seen order.
func Balances(participants []models.Participant) []MemberBalance {
	index := make(map[string]int)
	var balances []MemberBalance
	for _, p := range participants {
		i, ok := index[p.MemberID]
		if !ok {
			i = len(balances)
			index[p.MemberID] = i
			balances = append(balances, MemberBalance{MemberID: p.MemberID, DisplayName: p.Label()})
		}
		balances[i].Net = balances[i].Net.Add(p.Balance())
	}
	return balances
}

// CalculateSettlements nets participant balances into a transfer list.
//
// Algorithm:
//   - balance = paid - share
//   - creditors have balance > Epsilon, debtors < -Epsilon
//   - both lists sorted by absolute balance, largest first (stable)
//   - repeatedly move min(debtor remaining, creditor remaining) from the
//     largest debtor to the largest creditor, rounded to cents, and
//     advance whichever side drops below Epsilon
//
// Every step retires at least one side, so the result has at most
// creditors+debtors-1 transfers. This is greedy, not a global optimum.
func CalculateSettlements(participants []models.Participant) []Transfer {
	type side struct {
		id, name  string
		remaining decimal.Decimal
	}

	var creditors, debtors []side
	for _, b := range Balances(participants) {
		switch {
		case b.Net.GreaterThan(Epsilon):
			creditors = append(creditors, side{b.MemberID, b.DisplayName, b.Net})
		case b.Net.LessThan(Epsilon.Neg()):
			debtors = append(debtors, side{b.MemberID, b.DisplayName, b.Net.Neg()})
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].remaining.GreaterThan(creditors[j].remaining)
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].remaining.GreaterThan(debtors[j].remaining)
	})

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := decimal.Min(debtor.remaining, creditor.remaining)
		transfers = append(transfers, Transfer{
			From:     debtor.id,
			FromName: debtor.name,
			To:       creditor.id,
			ToName:   creditor.name,
			Amount:   amount.Round(2),
		})

		debtor.remaining = debtor.remaining.Sub(amount)
		creditor.remaining = creditor.remaining.Sub(amount)

		if debtor.remaining.LessThan(Epsilon) {
			i++
		}
		if creditor.remaining.LessThan(Epsilon) {
			j++
		}
	}

	return transfers
}
