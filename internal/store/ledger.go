package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

// InsufficientBalanceError reports a debit that would take a user's balance
// negative. The balance check and the failed write happen inside one
// transaction, so there is no window for a racing debit to slip through.
type InsufficientBalanceError struct {
	Balance   int
	Requested int
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, requested %d", e.Balance, e.Requested)
}

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var taskID, rewardUseID sql.NullInt64

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.UserID, &t.Amount, &t.Reason,
		&taskID, &rewardUseID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		t.RelatedTaskID = &taskID.Int64
	}
	if rewardUseID.Valid {
		t.RelatedRewardUseID = &rewardUseID.Int64
	}
	return &t, nil
}

const txnCols = `id, household_id, user_id, amount, reason, related_task_id, related_reward_use_id, created_at`

// insertTransactionTx appends a ledger row inside the caller's transaction.
// Partial unique indexes on the reference columns reject a second credit for
// the same task or a second debit for the same reward use.
func insertTransactionTx(tx *sql.Tx, householdID, userID int64, amount int, reason model.TxnReason, relatedTaskID, relatedRewardUseID *int64) (int64, error) {
	var taskID, rewardUseID sql.NullInt64
	if relatedTaskID != nil {
		taskID = sql.NullInt64{Int64: *relatedTaskID, Valid: true}
	}
	if relatedRewardUseID != nil {
		rewardUseID = sql.NullInt64{Int64: *relatedRewardUseID, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO point_transactions (household_id, user_id, amount, reason, related_task_id, related_reward_use_id) VALUES (?, ?, ?, ?, ?, ?)`,
		householdID, userID, amount, reason, taskID, rewardUseID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func balanceTx(tx *sql.Tx, householdID, userID int64) (int, error) {
	var balance int
	err := tx.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

func (s *LedgerStore) Credit(householdID, userID int64, amount int, reason model.TxnReason, relatedTaskID *int64) (*model.PointTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertTransactionTx(tx, householdID, userID, amount, reason, relatedTaskID, nil)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTransactionByID(householdID, id)
}

// Debit appends a negative entry. The balance is read inside the same
// transaction that writes, which closes the check-then-write race between
// concurrent debits for the same user.
func (s *LedgerStore) Debit(householdID, userID int64, amount int, reason model.TxnReason, relatedRewardUseID *int64) (*model.PointTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	balance, err := balanceTx(tx, householdID, userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, InsufficientBalanceError{Balance: balance, Requested: amount}
	}

	id, err := insertTransactionTx(tx, householdID, userID, -amount, reason, nil, relatedRewardUseID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTransactionByID(householdID, id)
}

func (s *LedgerStore) GetTransactionByID(householdID, id int64) (*model.PointTransaction, error) {
	row := s.db.QueryRow(`SELECT `+txnCols+` FROM point_transactions WHERE id = ? AND household_id = ?`, id, householdID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Balance is always computed from the transaction log; no cached counter
// exists to drift from it.
func (s *LedgerStore) Balance(householdID, userID int64) (int, error) {
	var balance int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

func (s *LedgerStore) History(householdID, userID int64) ([]model.PointTransaction, error) {
	rows, err := s.db.Query(
		`SELECT `+txnCols+` FROM point_transactions WHERE household_id = ? AND user_id = ? ORDER BY created_at DESC, id DESC`,
		householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// HouseholdBalances returns one row per household member, including members
// with no transactions yet.
func (s *LedgerStore) HouseholdBalances(householdID int64) ([]model.PointBalance, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.name,
			COALESCE(SUM(CASE WHEN pt.amount > 0 THEN pt.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pt.amount < 0 THEN -pt.amount ELSE 0 END), 0),
			COALESCE(SUM(pt.amount), 0)
		FROM users u
		LEFT JOIN point_transactions pt ON pt.user_id = u.id AND pt.household_id = u.household_id
		WHERE u.household_id = ?
		GROUP BY u.id, u.name
		ORDER BY u.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("household balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		if err := rows.Scan(&b.UserID, &b.UserName, &b.TotalEarned, &b.TotalSpent, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// ReconcileIssue describes one task/ledger mismatch found by Reconcile.
type ReconcileIssue struct {
	TaskID int64  `json:"task_id"`
	Detail string `json:"detail"`
}

// Reconcile cross-checks approved tasks against their ledger credits. A
// clean household returns no issues; anything returned means the atomicity
// contract was violated outside this process.
func (s *LedgerStore) Reconcile(householdID int64) ([]ReconcileIssue, error) {
	var issues []ReconcileIssue

	rows, err := s.db.Query(
		`SELECT t.id FROM tasks t
		LEFT JOIN point_transactions pt ON pt.related_task_id = t.id
		WHERE t.household_id = ? AND t.status = 'approved' AND pt.id IS NULL
		ORDER BY t.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("reconcile missing credits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, ReconcileIssue{TaskID: id, Detail: "approved task has no ledger credit"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT t.id FROM point_transactions pt
		JOIN tasks t ON t.id = pt.related_task_id
		WHERE pt.household_id = ? AND t.status != 'approved'
		ORDER BY t.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("reconcile stray credits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, ReconcileIssue{TaskID: id, Detail: "ledger credit references a task that is not approved"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT t.id FROM point_transactions pt
		JOIN tasks t ON t.id = pt.related_task_id
		WHERE pt.household_id = ? AND t.status = 'approved' AND pt.amount != t.points_actual
		ORDER BY t.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("reconcile amounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, ReconcileIssue{TaskID: id, Detail: "ledger credit amount does not match points_actual"})
	}
	return issues, rows.Err()
}
