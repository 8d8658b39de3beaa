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

func setupRewardTestDB(t *testing.T) (*sql.DB, *RewardStore, *model.User, *model.User) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "rewards.db"))
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
	return db, NewRewardStore(db), alice, bob
}

func TestRewardCatalog(t *testing.T) {
	_, rs, alice, _ := setupRewardTestDB(t)
	h := alice.HouseholdID

	// Create
	reward, err := rs.CreateReward(h, "Movie night", "Pick the film", 10)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if reward.Title != "Movie night" {
		t.Errorf("title = %q, want %q", reward.Title, "Movie night")
	}
	if reward.PointCost != 10 {
		t.Errorf("point_cost = %d, want 10", reward.PointCost)
	}
	if !reward.Active {
		t.Error("expected new reward to be active")
	}

	// Get is household scoped
	got, err := rs.GetReward(h+1, reward.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if got != nil {
		t.Error("expected nil for another household's reward")
	}

	// Update can retire a reward
	updated, err := rs.UpdateReward(h, reward.ID, "Movie night", "Pick the film", 12, false)
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.PointCost != 12 {
		t.Errorf("point_cost = %d, want 12", updated.PointCost)
	}
	if updated.Active {
		t.Error("expected reward to be inactive after update")
	}
}

func TestRewardListFiltersActive(t *testing.T) {
	_, rs, alice, _ := setupRewardTestDB(t)
	h := alice.HouseholdID

	if _, err := rs.CreateReward(h, "Zoo trip", "", 20); err != nil {
		t.Fatalf("create reward: %v", err)
	}
	retired, err := rs.CreateReward(h, "Arcade hour", "", 5)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if _, err := rs.UpdateReward(h, retired.ID, retired.Title, retired.Description, retired.PointCost, false); err != nil {
		t.Fatalf("retire reward: %v", err)
	}

	all, err := rs.ListRewards(h, false)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rewards, got %d", len(all))
	}
	// Active first, then inactive.
	if all[0].Title != "Zoo trip" || all[1].Title != "Arcade hour" {
		t.Errorf("order = [%q, %q], want [Zoo trip, Arcade hour]", all[0].Title, all[1].Title)
	}

	active, err := rs.ListRewards(h, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Zoo trip" {
		t.Fatalf("active rewards = %v, want just Zoo trip", active)
	}
}

func TestRewardApproveDebitsSnapshotCost(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID
	ls := NewLedgerStore(db)

	if _, err := ls.Credit(h, bob.ID, 12, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 5)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	use, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if use.Status != model.RewardUseRequested {
		t.Errorf("status = %s, want %s", use.Status, model.RewardUseRequested)
	}
	if use.CostPoints != 5 {
		t.Errorf("cost_points = %d, want 5", use.CostPoints)
	}

	// Repricing after the request does not change what approval debits.
	if _, err := rs.UpdateReward(h, reward.ID, reward.Title, reward.Description, 25, true); err != nil {
		t.Fatalf("reprice reward: %v", err)
	}

	resolved, err := rs.ApproveUse(h, use.ID, alice.ID)
	if err != nil {
		t.Fatalf("approve use: %v", err)
	}
	if resolved.Status != model.RewardUseApproved {
		t.Errorf("status = %s, want %s", resolved.Status, model.RewardUseApproved)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != alice.ID {
		t.Errorf("resolved_by = %v, want %d", resolved.ResolvedBy, alice.ID)
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}

	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 7 {
		t.Errorf("balance = %d, want 7", balance)
	}

	history, err := ls.History(h, bob.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(history))
	}
	debit := history[0]
	if debit.Amount != -5 {
		t.Errorf("amount = %d, want -5", debit.Amount)
	}
	if debit.Reason != model.ReasonRewardRedemption {
		t.Errorf("reason = %s, want %s", debit.Reason, model.ReasonRewardRedemption)
	}
	if debit.RelatedRewardUseID == nil || *debit.RelatedRewardUseID != use.ID {
		t.Errorf("related_reward_use_id = %v, want %d", debit.RelatedRewardUseID, use.ID)
	}
}

func TestRewardApproveInsufficientBalance(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID
	ls := NewLedgerStore(db)

	if _, err := ls.Credit(h, bob.ID, 3, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 5)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	use, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}

	_, err = rs.ApproveUse(h, use.ID, alice.ID)
	var ibe InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if ibe.Balance != 3 || ibe.Requested != 5 {
		t.Errorf("error = %v, want balance 3 requested 5", ibe)
	}

	// The request stays pending and the ledger is untouched.
	pending, err := rs.GetUse(h, use.ID)
	if err != nil {
		t.Fatalf("get use: %v", err)
	}
	if pending.Status != model.RewardUseRequested {
		t.Errorf("status = %s, want %s", pending.Status, model.RewardUseRequested)
	}
	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}

	// Earning the difference lets the same request resolve later.
	if _, err := ls.Credit(h, bob.ID, 2, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	resolved, err := rs.ApproveUse(h, use.ID, alice.ID)
	if err != nil {
		t.Fatalf("approve after top-up: %v", err)
	}
	if resolved.Status != model.RewardUseApproved {
		t.Errorf("status = %s, want %s", resolved.Status, model.RewardUseApproved)
	}
}

func TestRewardRejectLeavesLedger(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID
	ls := NewLedgerStore(db)

	if _, err := ls.Credit(h, bob.ID, 5, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 5)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	use, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}

	resolved, err := rs.RejectUse(h, use.ID, alice.ID)
	if err != nil {
		t.Fatalf("reject use: %v", err)
	}
	if resolved.Status != model.RewardUseRejected {
		t.Errorf("status = %s, want %s", resolved.Status, model.RewardUseRejected)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != alice.ID {
		t.Errorf("resolved_by = %v, want %d", resolved.ResolvedBy, alice.ID)
	}

	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
	history, err := ls.History(h, bob.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(history))
	}
}

func TestRewardUseDoubleResolve(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID

	if _, err := NewLedgerStore(db).Credit(h, bob.ID, 10, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 5)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	approved, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if _, err := rs.ApproveUse(h, approved.ID, alice.ID); err != nil {
		t.Fatalf("approve use: %v", err)
	}
	if _, err := rs.ApproveUse(h, approved.ID, alice.ID); !errors.Is(err, ErrUseResolved) {
		t.Errorf("second approve err = %v, want ErrUseResolved", err)
	}
	if _, err := rs.RejectUse(h, approved.ID, alice.ID); !errors.Is(err, ErrUseResolved) {
		t.Errorf("reject after approve err = %v, want ErrUseResolved", err)
	}

	rejected, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if _, err := rs.RejectUse(h, rejected.ID, alice.ID); err != nil {
		t.Fatalf("reject use: %v", err)
	}
	if _, err := rs.ApproveUse(h, rejected.ID, alice.ID); !errors.Is(err, ErrUseResolved) {
		t.Errorf("approve after reject err = %v, want ErrUseResolved", err)
	}
}

func TestRewardApproveRacing(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID
	ls := NewLedgerStore(db)

	if _, err := ls.Credit(h, bob.ID, 10, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 7)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	use, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = rs.ApproveUse(h, use.ID, alice.ID)
		}(i)
	}
	wg.Wait()

	var ok, resolved int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUseResolved):
			resolved++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || resolved != 1 {
		t.Errorf("got %d successes and %d ErrUseResolved, want 1 and 1", ok, resolved)
	}

	balance, err := ls.Balance(h, bob.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}
	history, err := ls.History(h, bob.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(history))
	}
}

func TestRewardListUsesByStatus(t *testing.T) {
	db, rs, alice, bob := setupRewardTestDB(t)
	h := alice.HouseholdID

	if _, err := NewLedgerStore(db).Credit(h, bob.ID, 10, model.ReasonTaskApproval, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	reward, err := rs.CreateReward(h, "Ice cream", "", 2)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	first, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if _, err := rs.RequestUse(h, reward.ID, bob.ID, reward.PointCost); err != nil {
		t.Fatalf("request use: %v", err)
	}
	if _, err := rs.ApproveUse(h, first.ID, alice.ID); err != nil {
		t.Fatalf("approve use: %v", err)
	}

	all, err := rs.ListUses(h, "")
	if err != nil {
		t.Fatalf("list uses: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 uses, got %d", len(all))
	}

	pending, err := rs.ListUses(h, model.RewardUseRequested)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending use, got %d", len(pending))
	}

	approved, err := rs.ListUses(h, model.RewardUseApproved)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != first.ID {
		t.Errorf("approved uses = %v, want just use %d", approved, first.ID)
	}
}
