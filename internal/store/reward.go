package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tmkelly/choreboard/internal/model"
)

// ErrUseResolved is returned when approving or rejecting a reward use that
// has already been resolved. The first resolution stands.
var ErrUseResolved = errors.New("reward use already resolved")

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.PointCost, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, household_id, title, description, point_cost, active, created_at`

func (s *RewardStore) CreateReward(householdID int64, title, description string, pointCost int) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (household_id, title, description, point_cost) VALUES (?, ?, ?, ?)`,
		householdID, title, description, pointCost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetReward(householdID, id)
}

func (s *RewardStore) GetReward(householdID, id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ? AND household_id = ?`, id, householdID)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListRewards returns the household's catalog, active first, then by title.
func (s *RewardStore) ListRewards(householdID int64, activeOnly bool) ([]model.Reward, error) {
	query := `SELECT ` + rewardCols + ` FROM rewards WHERE household_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY active DESC, title ASC`

	rows, err := s.db.Query(query, householdID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) UpdateReward(householdID, id int64, title, description string, pointCost int, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, point_cost = ?, active = ? WHERE id = ? AND household_id = ?`,
		title, description, pointCost, a, id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetReward(householdID, id)
}

// --- Reward use methods ---

func scanRewardUse(scanner interface{ Scan(...any) error }) (*model.RewardUse, error) {
	var u model.RewardUse
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullInt64

	err := scanner.Scan(
		&u.ID, &u.HouseholdID, &u.RewardID, &u.UserID, &u.Status,
		&u.CostPoints, &u.RequestedAt, &resolvedAt, &resolvedBy,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		u.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		u.ResolvedBy = &resolvedBy.Int64
	}
	return &u, nil
}

const rewardUseCols = `id, household_id, reward_id, user_id, status, cost_points, requested_at, resolved_at, resolved_by`

// RequestUse records a redemption request. The reward's cost is snapshotted
// so approval debits what the user saw when requesting.
func (s *RewardStore) RequestUse(householdID, rewardID, userID int64, costPoints int) (*model.RewardUse, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_uses (household_id, reward_id, user_id, cost_points) VALUES (?, ?, ?, ?)`,
		householdID, rewardID, userID, costPoints,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward use: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUse(householdID, id)
}

func (s *RewardStore) GetUse(householdID, id int64) (*model.RewardUse, error) {
	row := s.db.QueryRow(`SELECT `+rewardUseCols+` FROM reward_uses WHERE id = ? AND household_id = ?`, id, householdID)
	u, err := scanRewardUse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward use: %w", err)
	}
	return u, nil
}

func (s *RewardStore) ListUses(householdID int64, status model.RewardUseStatus) ([]model.RewardUse, error) {
	query := `SELECT ` + rewardUseCols + ` FROM reward_uses WHERE household_id = ?`
	args := []any{householdID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reward uses: %w", err)
	}
	defer rows.Close()

	var uses []model.RewardUse
	for rows.Next() {
		u, err := scanRewardUse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward use: %w", err)
		}
		uses = append(uses, *u)
	}
	return uses, rows.Err()
}

// ApproveUse resolves the request and debits the snapshotted cost in one
// transaction. An insufficient balance leaves the request pending; a request
// that is no longer pending returns ErrUseResolved.
func (s *RewardStore) ApproveUse(householdID, id, resolverID int64) (*model.RewardUse, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+rewardUseCols+` FROM reward_uses WHERE id = ? AND household_id = ?`, id, householdID)
	u, err := scanRewardUse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward use: %w", err)
	}
	if u.Status != model.RewardUseRequested {
		return nil, ErrUseResolved
	}

	balance, err := balanceTx(tx, householdID, u.UserID)
	if err != nil {
		return nil, err
	}
	if balance < u.CostPoints {
		return nil, InsufficientBalanceError{Balance: balance, Requested: u.CostPoints}
	}

	result, err := tx.Exec(
		`UPDATE reward_uses SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ? AND status = ?`,
		model.RewardUseApproved, time.Now().UTC(), resolverID, id, model.RewardUseRequested,
	)
	if err != nil {
		return nil, fmt.Errorf("approve reward use: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrUseResolved
	}

	if _, err := insertTransactionTx(tx, householdID, u.UserID, -u.CostPoints, model.ReasonRewardRedemption, nil, &id); err != nil {
		return nil, fmt.Errorf("debit redemption: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetUse(householdID, id)
}

// RejectUse resolves the request without touching the ledger.
func (s *RewardStore) RejectUse(householdID, id, resolverID int64) (*model.RewardUse, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+rewardUseCols+` FROM reward_uses WHERE id = ? AND household_id = ?`, id, householdID)
	u, err := scanRewardUse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward use: %w", err)
	}
	if u.Status != model.RewardUseRequested {
		return nil, ErrUseResolved
	}

	result, err := tx.Exec(
		`UPDATE reward_uses SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ? AND status = ?`,
		model.RewardUseRejected, time.Now().UTC(), resolverID, id, model.RewardUseRequested,
	)
	if err != nil {
		return nil, fmt.Errorf("reject reward use: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrUseResolved
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetUse(householdID, id)
}
