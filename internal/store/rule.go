package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

type RuleStore struct {
	db *sql.DB
}

func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

func scanRule(scanner interface{ Scan(...any) error }) (*model.RecurringTaskRule, error) {
	var r model.RecurringTaskRule
	var assigneeID sql.NullInt64
	var active int

	err := scanner.Scan(
		&r.ID, &r.HouseholdID, &r.TemplateID, &r.Frequency, &assigneeID,
		&r.NextRunDate, &active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		r.AssigneeID = &assigneeID.Int64
	}
	r.Active = active != 0
	return &r, nil
}

const ruleCols = `id, household_id, template_id, frequency, assignee_id, next_run_date, active, created_at, updated_at`

func (s *RuleStore) Create(householdID, templateID int64, frequency model.Frequency, assigneeID *int64, nextRunDate string) (*model.RecurringTaskRule, error) {
	var aID sql.NullInt64
	if assigneeID != nil {
		aID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO recurring_task_rules (household_id, template_id, frequency, assignee_id, next_run_date) VALUES (?, ?, ?, ?, ?)`,
		householdID, templateID, frequency, aID, nextRunDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(householdID, id)
}

func (s *RuleStore) GetByID(householdID, id int64) (*model.RecurringTaskRule, error) {
	row := s.db.QueryRow(
		`SELECT `+ruleCols+` FROM recurring_task_rules WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

func (s *RuleStore) List(householdID int64) ([]model.RecurringTaskRule, error) {
	rows, err := s.db.Query(
		`SELECT `+ruleCols+` FROM recurring_task_rules WHERE household_id = ? ORDER BY next_run_date ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.RecurringTaskRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *RuleStore) Deactivate(householdID, id int64) (*model.RecurringTaskRule, error) {
	_, err := s.db.Exec(
		`UPDATE recurring_task_rules SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("deactivate rule: %w", err)
	}
	return s.GetByID(householdID, id)
}
