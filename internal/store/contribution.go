package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

type ContributionStore struct {
	db *sql.DB
}

func NewContributionStore(db *sql.DB) *ContributionStore {
	return &ContributionStore{db: db}
}

// Record counts one qualifying action for the user. When the count reaches
// the household's contribution rate it resets to zero and a single
// contribution point is credited, all in one transaction. Reports whether
// this call issued the credit.
func (s *ContributionStore) Record(householdID, userID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rate, pending int
	err = tx.QueryRow(
		`SELECT h.contribution_rate, u.pending_contribution_count
		FROM users u JOIN households h ON h.id = u.household_id
		WHERE u.id = ? AND u.household_id = ?`,
		userID, householdID,
	).Scan(&rate, &pending)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("user %d not in household %d", userID, householdID)
	}
	if err != nil {
		return false, fmt.Errorf("get contribution state: %w", err)
	}

	pending++
	// A rate of zero disables contribution credits.
	credited := rate > 0 && pending >= rate
	if credited {
		pending = 0
	}

	if _, err := tx.Exec(
		`UPDATE users SET pending_contribution_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		pending, userID,
	); err != nil {
		return false, fmt.Errorf("update contribution count: %w", err)
	}
	if credited {
		if _, err := insertTransactionTx(tx, householdID, userID, 1, model.ReasonContribution, nil, nil); err != nil {
			return false, fmt.Errorf("credit contribution: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return credited, nil
}
