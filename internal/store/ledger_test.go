package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tmkelly/choreboard/internal/database"
	"github.com/tmkelly/choreboard/internal/model"
)

func setupLedgerTestDB(t *testing.T) (*sql.DB, *LedgerStore, *model.User, *model.User) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, alice, err := NewHouseholdStore(db).Create("Test House", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	bob, err := NewUserStore(db).Create(alice.HouseholdID, "bob@example.com", "Bob", "member")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return db, NewLedgerStore(db), alice, bob
}

func TestLedgerCreditAndBalance(t *testing.T) {
	_, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	if _, err := ls.Credit(h, bob.ID, 5, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	txn, err := ls.Credit(h, bob.ID, 3, model.ReasonContribution, nil)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if txn.Amount != 3 {
		t.Errorf("amount = %d, want 3", txn.Amount)
	}
	if txn.Reason != model.ReasonContribution {
		t.Errorf("reason = %s, want %s", txn.Reason, model.ReasonContribution)
	}

	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 8 {
		t.Errorf("balance = %d, want 8", balance)
	}

	// History is newest first.
	txns, err := ls.History(h, bob.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Amount != 3 || txns[1].Amount != 5 {
		t.Errorf("history order = [%d, %d], want [3, 5]", txns[0].Amount, txns[1].Amount)
	}
}

func TestLedgerAmountValidation(t *testing.T) {
	_, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	if _, err := ls.Credit(h, bob.ID, 0, model.ReasonContribution, nil); err == nil {
		t.Error("credit of 0 should fail")
	}
	if _, err := ls.Credit(h, bob.ID, -2, model.ReasonContribution, nil); err == nil {
		t.Error("negative credit should fail")
	}
	if _, err := ls.Debit(h, bob.ID, 0, model.ReasonRewardRedemption, nil); err == nil {
		t.Error("debit of 0 should fail")
	}
}

func TestLedgerDebitInsufficient(t *testing.T) {
	_, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	if _, err := ls.Credit(h, bob.ID, 5, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := ls.Debit(h, bob.ID, 8, model.ReasonRewardRedemption, nil)
	var ibe InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("overdraft: got %v, want InsufficientBalanceError", err)
	}
	if ibe.Balance != 5 || ibe.Requested != 8 {
		t.Errorf("error = {balance %d, requested %d}, want {5, 8}", ibe.Balance, ibe.Requested)
	}

	// The failed debit wrote nothing.
	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
	txns, _ := ls.History(h, bob.ID)
	if len(txns) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(txns))
	}
}

func TestLedgerDebitRacing(t *testing.T) {
	_, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	if _, err := ls.Credit(h, bob.ID, 10, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Two debits of 7 against a balance of 10: exactly one may land.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ls.Debit(h, bob.ID, 7, model.ReasonRewardRedemption, nil)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var ibe InsufficientBalanceError
		if errors.As(err, &ibe) {
			lost++
			continue
		}
		t.Fatalf("unexpected debit error: %v", err)
	}
	if won != 1 || lost != 1 {
		t.Fatalf("got %d winners and %d losers, want 1 and 1", won, lost)
	}

	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}
}

func TestLedgerHouseholdBalances(t *testing.T) {
	_, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	if _, err := ls.Credit(h, bob.ID, 5, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ls.Debit(h, bob.ID, 2, model.ReasonRewardRedemption, nil); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balances, err := ls.HouseholdBalances(h)
	if err != nil {
		t.Fatalf("household balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 members, got %d", len(balances))
	}

	// Ordered by name: Alice (no activity) then Bob.
	if balances[0].UserID != alice.ID || balances[0].Balance != 0 {
		t.Errorf("alice balance = %+v, want zeroes", balances[0])
	}
	if balances[1].UserID != bob.ID {
		t.Fatalf("second row = user %d, want %d", balances[1].UserID, bob.ID)
	}
	if balances[1].TotalEarned != 5 || balances[1].TotalSpent != 2 || balances[1].Balance != 3 {
		t.Errorf("bob = earned %d spent %d balance %d, want 5 2 3",
			balances[1].TotalEarned, balances[1].TotalSpent, balances[1].Balance)
	}
}

func TestLedgerReconcileClean(t *testing.T) {
	db, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID

	ts := NewTaskStore(db)
	created, err := ts.Create(CreateTaskParams{HouseholdID: h, Title: "Shovel snow", CreatedBy: alice.ID, PointsProposed: intp(4)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	walkToInProgress(t, ts, h, created.ID, bob.ID)
	if _, err := ts.Complete(h, created.ID, bob.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := ts.Approve(h, created.ID, alice.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	issues, err := ls.Reconcile(h)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestLedgerReconcileDetects(t *testing.T) {
	db, ls, alice, bob := setupLedgerTestDB(t)
	h := alice.HouseholdID
	ts := NewTaskStore(db)

	// Approved with no credit: forced via raw SQL, the store won't do this.
	orphan, err := ts.Create(CreateTaskParams{HouseholdID: h, Title: "Orphan", CreatedBy: alice.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := db.Exec(`UPDATE tasks SET status = 'approved', points_actual = 4 WHERE id = ?`, orphan.ID); err != nil {
		t.Fatalf("force approve: %v", err)
	}

	// Credit against a task that never got approved.
	stray, err := ts.Create(CreateTaskParams{HouseholdID: h, Title: "Stray", CreatedBy: alice.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := ls.Credit(h, bob.ID, 3, model.ReasonTaskApproval, &stray.ID); err != nil {
		t.Fatalf("stray credit: %v", err)
	}

	// Amount drifted after a clean approval.
	drifted, err := ts.Create(CreateTaskParams{HouseholdID: h, Title: "Drifted", CreatedBy: alice.ID, PointsProposed: intp(5)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	walkToInProgress(t, ts, h, drifted.ID, bob.ID)
	if _, err := ts.Complete(h, drifted.ID, bob.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := ts.Approve(h, drifted.ID, alice.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := db.Exec(`UPDATE point_transactions SET amount = 7 WHERE related_task_id = ?`, drifted.ID); err != nil {
		t.Fatalf("force drift: %v", err)
	}

	issues, err := ls.Reconcile(h)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d: %v", len(issues), issues)
	}

	found := map[int64]string{}
	for _, issue := range issues {
		found[issue.TaskID] = issue.Detail
	}
	if found[orphan.ID] != "approved task has no ledger credit" {
		t.Errorf("orphan detail = %q", found[orphan.ID])
	}
	if found[stray.ID] != "ledger credit references a task that is not approved" {
		t.Errorf("stray detail = %q", found[stray.ID])
	}
	if found[drifted.ID] != "ledger credit amount does not match points_actual" {
		t.Errorf("drifted detail = %q", found[drifted.ID])
	}
}
