package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	var defaultPoints sql.NullInt64

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Name, &t.Category, &defaultPoints,
		&t.Instructions, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if defaultPoints.Valid {
		p := int(defaultPoints.Int64)
		t.DefaultPoints = &p
	}
	return &t, nil
}

const templateCols = `id, household_id, name, category, default_points, instructions, created_at, updated_at`

func insertTemplateTx(tx *sql.Tx, householdID int64, name, category string, defaultPoints *int, instructions string) (int64, error) {
	var points sql.NullInt64
	if defaultPoints != nil {
		points = sql.NullInt64{Int64: int64(*defaultPoints), Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO task_templates (household_id, name, category, default_points, instructions) VALUES (?, ?, ?, ?, ?)`,
		householdID, name, category, points, instructions,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *TemplateStore) Create(householdID int64, name, category string, defaultPoints *int, instructions string) (*model.TaskTemplate, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertTemplateTx(tx, householdID, name, category, defaultPoints, instructions)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

func (s *TemplateStore) GetByID(householdID, id int64) (*model.TaskTemplate, error) {
	row := s.db.QueryRow(
		`SELECT `+templateCols+` FROM task_templates WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) List(householdID int64) ([]model.TaskTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+templateCols+` FROM task_templates WHERE household_id = ? ORDER BY name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.TaskTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}
