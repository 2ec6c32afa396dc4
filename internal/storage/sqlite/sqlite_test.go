package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "lineledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tempDir)
	})
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice, err := store.GetOrCreateUser(ctx, "U-alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	t.Run("GetOrCreateUser is stable", func(t *testing.T) {
		again, err := store.GetOrCreateUser(ctx, "U-alice")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}
		if again.ID != alice.ID {
			t.Errorf("ID changed: %s != %s", again.ID, alice.ID)
		}

		byID, err := store.GetUser(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if byID.LineUserID != "U-alice" {
			t.Errorf("LineUserID = %q, want U-alice", byID.LineUserID)
		}
	})

	t.Run("transactions round trip with cents precision", func(t *testing.T) {
		txn := &models.Transaction{
			OwnerID:  alice.ID,
			Amount:   dec("123.45"),
			Category: "food",
			Note:     "lunch",
			Kind:     models.KindExpense,
		}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if txn.ID == "" || txn.CreatedAt == 0 || txn.Date.IsZero() {
			t.Fatalf("expected ID, CreatedAt and Date to be set: %+v", txn)
		}

		got, err := store.GetTransaction(ctx, txn.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if !got.Amount.Equal(dec("123.45")) {
			t.Errorf("Amount = %s, want 123.45", got.Amount)
		}
		if got.Kind != models.KindExpense || got.Category != "food" || got.Note != "lunch" {
			t.Errorf("unexpected transaction: %+v", got)
		}

		got.Amount = dec("99")
		got.Category = "snack"
		if err := store.UpdateTransaction(ctx, got); err != nil {
			t.Fatalf("UpdateTransaction failed: %v", err)
		}
		updated, _ := store.GetTransaction(ctx, txn.ID)
		if !updated.Amount.Equal(dec("99")) || updated.Category != "snack" {
			t.Errorf("update not applied: %+v", updated)
		}

		if err := store.DeleteTransaction(ctx, "someone-else", txn.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("delete by non-owner: got %v, want ErrNotFound", err)
		}
		if err := store.DeleteTransaction(ctx, alice.ID, txn.ID); err != nil {
			t.Fatalf("DeleteTransaction failed: %v", err)
		}
		if _, err := store.GetTransaction(ctx, txn.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("after delete: got %v, want ErrNotFound", err)
		}
	})

	t.Run("sums respect kind and date range", func(t *testing.T) {
		bob, _ := store.GetOrCreateUser(ctx, "U-bob")
		base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		seed := []*models.Transaction{
			{OwnerID: bob.ID, Amount: dec("100"), Category: "food", Kind: models.KindExpense, Date: base},
			{OwnerID: bob.ID, Amount: dec("50.5"), Category: "transport", Kind: models.KindExpense, Date: base.Add(24 * time.Hour)},
			{OwnerID: bob.ID, Amount: dec("30"), Category: "food", Kind: models.KindExpense, Date: base.AddDate(0, -1, 0)},
			{OwnerID: bob.ID, Amount: dec("1000"), Category: "salary", Kind: models.KindIncome, Date: base},
		}
		for _, txn := range seed {
			if err := store.CreateTransaction(ctx, txn); err != nil {
				t.Fatalf("CreateTransaction failed: %v", err)
			}
		}

		march := storage.TransactionFilter{
			OwnerID: bob.ID,
			Kind:    models.KindExpense,
			From:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			To:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		sum, err := store.SumTransactions(ctx, march)
		if err != nil {
			t.Fatalf("SumTransactions failed: %v", err)
		}
		if !sum.Equal(dec("150.5")) {
			t.Errorf("March expense = %s, want 150.5", sum)
		}

		byCat, err := store.SumByCategory(ctx, march)
		if err != nil {
			t.Fatalf("SumByCategory failed: %v", err)
		}
		if !byCat["food"].Equal(dec("100")) || !byCat["transport"].Equal(dec("50.5")) {
			t.Errorf("unexpected category sums: %v", byCat)
		}

		list, err := store.ListTransactions(ctx, storage.TransactionFilter{OwnerID: bob.ID, Limit: 2})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(list))
		}
		if !list[0].Date.Equal(base.Add(24 * time.Hour)) {
			t.Errorf("expected newest first, got %v", list[0].Date)
		}
	})
}

func TestBudgetDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := store.GetOrCreateUser(ctx, "U-budget")

	t.Run("missing budget is nil", func(t *testing.T) {
		b, err := store.GetBudget(ctx, user.ID, "2026-01")
		if err != nil {
			t.Fatalf("GetBudget failed: %v", err)
		}
		if b != nil {
			t.Errorf("expected nil budget, got %+v", b)
		}
	})

	t.Run("legacy document is migrated on read", func(t *testing.T) {
		legacy := `{"totalBudget": 5000, "dailyBudget": 200, "weeklyBudget": 1000, "categoryBudgets": {"food": 3000}}`
		if err := store.putRawBudget(ctx, user.ID, "2026-02", legacy); err != nil {
			t.Fatalf("putRawBudget failed: %v", err)
		}

		b, err := store.GetBudget(ctx, user.ID, "2026-02")
		if err != nil {
			t.Fatalf("GetBudget failed: %v", err)
		}
		if b.Total == nil || !b.Total.Equal(dec("5000")) {
			t.Errorf("Total = %v, want 5000", b.Total)
		}
		if b.Daily == nil || !b.Daily.Equal(dec("200")) {
			t.Errorf("Daily = %v, want 200", b.Daily)
		}
		if b.Monthly != nil {
			t.Errorf("Monthly = %v, want nil", b.Monthly)
		}
		if eff := b.EffectiveMonthly(); eff == nil || !eff.Equal(dec("5000")) {
			t.Errorf("EffectiveMonthly = %v, want total 5000", eff)
		}
		if !b.Categories["food"].Equal(dec("3000")) {
			t.Errorf("food limit = %s, want 3000", b.Categories["food"])
		}

		var doc string
		if err := store.db.QueryRow("SELECT document FROM budgets WHERE owner_id = ? AND month = ?", user.ID, "2026-02").Scan(&doc); err != nil {
			t.Fatalf("read back document: %v", err)
		}
		var decoded models.Budget
		migrated, err := decoded.UnmarshalDocument([]byte(doc))
		if err != nil {
			t.Fatalf("UnmarshalDocument failed: %v", err)
		}
		if migrated {
			t.Error("expected document to be rewritten at the current version")
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		monthly := dec("800")
		b := &models.Budget{OwnerID: user.ID, Month: "2026-03", Monthly: &monthly}
		if err := store.UpsertBudget(ctx, b); err != nil {
			t.Fatalf("UpsertBudget failed: %v", err)
		}
		monthly2 := dec("900")
		b.Monthly = &monthly2
		if err := store.UpsertBudget(ctx, b); err != nil {
			t.Fatalf("UpsertBudget failed: %v", err)
		}
		got, _ := store.GetBudget(ctx, user.ID, "2026-03")
		if got.Monthly == nil || !got.Monthly.Equal(dec("900")) {
			t.Errorf("Monthly = %v, want 900", got.Monthly)
		}
	})
}

func TestGoalCompletionIsSticky(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := store.GetOrCreateUser(ctx, "U-goal")

	goal := &models.SavingsGoal{OwnerID: user.ID, Title: "trip", Target: dec("1000")}
	if err := store.CreateGoal(ctx, goal); err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	goal.Current = dec("1000")
	goal.Completed = true
	goal.CompletedAt = 42
	flipped, err := store.UpdateGoal(ctx, goal)
	if err != nil {
		t.Fatalf("UpdateGoal failed: %v", err)
	}
	if !flipped {
		t.Error("first completion should report the flip")
	}

	goal.CompletedAt = 43
	if flipped, err = store.UpdateGoal(ctx, goal); err != nil || flipped {
		t.Errorf("repeated completion: flipped=%v err=%v", flipped, err)
	}

	goal.Current = dec("10")
	goal.Completed = false
	goal.CompletedAt = 0
	if flipped, err = store.UpdateGoal(ctx, goal); err != nil || flipped {
		t.Errorf("progress update: flipped=%v err=%v", flipped, err)
	}

	goals, err := store.ListGoals(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListGoals failed: %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	if !goals[0].Completed || goals[0].CompletedAt != 42 {
		t.Errorf("completion regressed: %+v", goals[0])
	}
	if !goals[0].Current.Equal(dec("10")) {
		t.Errorf("Current = %s, want 10", goals[0].Current)
	}
}

func TestGroupExpenseSettlement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner, _ := store.GetOrCreateUser(ctx, "U-1")

	g := &models.GroupExpense{GroupID: "C-1", CreatorID: "U-1", Total: dec("300"), Description: "dinner"}
	if err := store.CreateGroupExpense(ctx, g); err != nil {
		t.Fatalf("CreateGroupExpense failed: %v", err)
	}

	t.Run("paid and share are written independently", func(t *testing.T) {
		if err := store.SetParticipantPaid(ctx, g.ID, models.Participant{MemberID: "U-1", DisplayName: "Alice", Paid: dec("300")}); err != nil {
			t.Fatalf("SetParticipantPaid failed: %v", err)
		}
		if err := store.SetParticipantShare(ctx, g.ID, models.Participant{MemberID: "U-1", Share: dec("100")}); err != nil {
			t.Fatalf("SetParticipantShare failed: %v", err)
		}
		if err := store.SetParticipantPaid(ctx, g.ID, models.Participant{MemberID: "U-1", Paid: dec("250")}); err != nil {
			t.Fatalf("SetParticipantPaid failed: %v", err)
		}
		err := store.SetParticipantShare(ctx, g.ID, models.Participant{MemberID: "U-ghost", Share: dec("1")})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("share for unknown member: got %v, want ErrNotFound", err)
		}

		got, err := store.GetGroupExpense(ctx, g.ID)
		if err != nil {
			t.Fatalf("GetGroupExpense failed: %v", err)
		}
		p := got.Participant("U-1")
		if p == nil {
			t.Fatal("participant missing")
		}
		if !p.Paid.Equal(dec("250")) || !p.Share.Equal(dec("100")) || p.DisplayName != "Alice" {
			t.Errorf("unexpected participant: %+v", p)
		}
	})

	t.Run("second settle fails and writes nothing", func(t *testing.T) {
		txns := []*models.Transaction{
			{OwnerID: owner.ID, Amount: dec("250"), Category: models.CategoryGroupContribution, Kind: models.KindExpense, GroupRole: models.GroupRoleContribution},
		}
		if err := store.SettleGroupExpense(ctx, g.ID, 100, txns); err != nil {
			t.Fatalf("SettleGroupExpense failed: %v", err)
		}

		again := []*models.Transaction{
			{OwnerID: owner.ID, Amount: dec("250"), Category: models.CategoryGroupContribution, Kind: models.KindExpense},
		}
		err := store.SettleGroupExpense(ctx, g.ID, 200, again)
		if !errors.Is(err, storage.ErrAlreadySettled) {
			t.Fatalf("second settle: got %v, want ErrAlreadySettled", err)
		}

		list, _ := store.ListTransactions(ctx, storage.TransactionFilter{OwnerID: owner.ID})
		if len(list) != 1 {
			t.Errorf("expected 1 ledger entry, got %d", len(list))
		}

		got, _ := store.LatestGroupExpense(ctx, "C-1")
		if !got.Settled || got.SettledAt != 100 {
			t.Errorf("unexpected settle state: settled=%v at=%d", got.Settled, got.SettledAt)
		}
		if len(got.TransactionIDs) != 1 || got.TransactionIDs[0] != txns[0].ID {
			t.Errorf("TransactionIDs = %v, want [%s]", got.TransactionIDs, txns[0].ID)
		}

		err = store.SetParticipantPaid(ctx, g.ID, models.Participant{MemberID: "U-2", Paid: dec("1")})
		if !errors.Is(err, storage.ErrAlreadySettled) {
			t.Errorf("mutating settled expense: got %v, want ErrAlreadySettled", err)
		}
	})

	t.Run("no expense in group", func(t *testing.T) {
		_, err := store.LatestGroupExpense(ctx, "C-empty")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestPetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := store.GetOrCreateUser(ctx, "U-pet")

	pet, err := store.GetPet(ctx, user.ID)
	if err != nil || pet != nil {
		t.Fatalf("expected no pet, got %+v, %v", pet, err)
	}

	pet = &models.Pet{OwnerID: user.ID, Name: "Mochi", Stage: models.PetStageEgg, State: models.PetStateNormal, Hunger: 50, Level: 1}
	if err := store.SavePet(ctx, pet); err != nil {
		t.Fatalf("SavePet failed: %v", err)
	}
	pet.Hunger = 80
	if err := store.SavePet(ctx, pet); err != nil {
		t.Fatalf("SavePet failed: %v", err)
	}

	got, err := store.GetPet(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetPet failed: %v", err)
	}
	if got.Name != "Mochi" || got.Hunger != 80 || got.Stage != models.PetStageEgg {
		t.Errorf("unexpected pet: %+v", got)
	}
}

func TestAmountOutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, _ := store.GetOrCreateUser(ctx, "U-big")

	huge := dec("184467440737095616.50")

	t.Run("insert fails instead of wrapping", func(t *testing.T) {
		txn := &models.Transaction{OwnerID: user.ID, Amount: huge, Category: "food", Kind: models.KindExpense}
		err := store.CreateTransaction(ctx, txn)
		if !errors.Is(err, storage.ErrAmountOutOfRange) {
			t.Fatalf("CreateTransaction error = %v, want ErrAmountOutOfRange", err)
		}
		txns, err := store.ListTransactions(ctx, storage.TransactionFilter{OwnerID: user.ID})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txns) != 0 {
			t.Errorf("stored %d transactions, want none", len(txns))
		}
	})

	t.Run("update keeps the stored amount", func(t *testing.T) {
		txn := &models.Transaction{OwnerID: user.ID, Amount: dec("12.34"), Category: "food", Kind: models.KindExpense}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		txn.Amount = huge
		if err := store.UpdateTransaction(ctx, txn); !errors.Is(err, storage.ErrAmountOutOfRange) {
			t.Fatalf("UpdateTransaction error = %v, want ErrAmountOutOfRange", err)
		}
		got, err := store.GetTransaction(ctx, txn.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if !got.Amount.Equal(dec("12.34")) {
			t.Errorf("Amount = %s, want 12.34", got.Amount)
		}
	})

	t.Run("largest representable amount round-trips", func(t *testing.T) {
		maxCents := dec("92233720368547758.07")
		txn := &models.Transaction{OwnerID: user.ID, Amount: maxCents, Category: "other", Kind: models.KindIncome}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		got, err := store.GetTransaction(ctx, txn.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if !got.Amount.Equal(maxCents) {
			t.Errorf("Amount = %s, want %s", got.Amount, maxCents)
		}
	})
}
