package store

import (
	"database/sql"
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

type MealPlanStore struct {
	db *sql.DB
}

func NewMealPlanStore(db *sql.DB) *MealPlanStore {
	return &MealPlanStore{db: db}
}

func scanMealDay(scanner interface{ Scan(...any) error }) (*model.MealPlanDay, error) {
	var d model.MealPlanDay
	var assigneeID sql.NullInt64

	err := scanner.Scan(&d.ID, &d.HouseholdID, &d.DayDate, &assigneeID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		d.AssigneeID = &assigneeID.Int64
	}
	return &d, nil
}

const mealDayCols = `id, household_id, day_date, assignee_id, created_at, updated_at`

// UpsertDay returns the household's plan row for the date, creating it if
// none exists yet. An existing row has its assignee replaced.
func (s *MealPlanStore) UpsertDay(householdID int64, dayDate string, assigneeID *int64) (*model.MealPlanDay, error) {
	var aID sql.NullInt64
	if assigneeID != nil {
		aID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+mealDayCols+` FROM meal_plan_days WHERE household_id = ? AND day_date = ?`,
		householdID, dayDate,
	)
	existing, err := scanMealDay(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get meal day: %w", err)
	}

	var id int64
	if existing != nil {
		id = existing.ID
		if _, err := tx.Exec(
			`UPDATE meal_plan_days SET assignee_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			aID, id,
		); err != nil {
			return nil, fmt.Errorf("update meal day: %w", err)
		}
	} else {
		result, err := tx.Exec(
			`INSERT INTO meal_plan_days (household_id, day_date, assignee_id) VALUES (?, ?, ?)`,
			householdID, dayDate, aID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert meal day: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetDayByID(householdID, id)
}

func (s *MealPlanStore) GetDayByID(householdID, id int64) (*model.MealPlanDay, error) {
	row := s.db.QueryRow(
		`SELECT `+mealDayCols+` FROM meal_plan_days WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	d, err := scanMealDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal day: %w", err)
	}
	return d, nil
}

func (s *MealPlanStore) GetDayByDate(householdID int64, dayDate string) (*model.MealPlanDay, error) {
	row := s.db.QueryRow(
		`SELECT `+mealDayCols+` FROM meal_plan_days WHERE household_id = ? AND day_date = ?`,
		householdID, dayDate,
	)
	d, err := scanMealDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal day: %w", err)
	}
	return d, nil
}

func scanSelection(scanner interface{ Scan(...any) error }) (*model.MealPlanSelection, error) {
	var sel model.MealPlanSelection
	err := scanner.Scan(&sel.ID, &sel.DayID, &sel.Slot, &sel.DishName, &sel.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

const selectionCols = `id, day_id, slot, dish_name, created_at`

// ReplaceSelections swaps out a slot's dishes in one transaction. Passing no
// dishes clears the slot.
func (s *MealPlanStore) ReplaceSelections(dayID int64, slot model.MealSlot, dishes []string) ([]model.MealPlanSelection, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM meal_plan_selections WHERE day_id = ? AND slot = ?`, dayID, slot); err != nil {
		return nil, fmt.Errorf("clear selections: %w", err)
	}
	for _, dish := range dishes {
		if _, err := tx.Exec(
			`INSERT INTO meal_plan_selections (day_id, slot, dish_name) VALUES (?, ?, ?)`,
			dayID, slot, dish,
		); err != nil {
			return nil, fmt.Errorf("insert selection: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.SelectionsForSlot(dayID, slot)
}

func (s *MealPlanStore) SelectionsForDay(dayID int64) ([]model.MealPlanSelection, error) {
	rows, err := s.db.Query(
		`SELECT `+selectionCols+` FROM meal_plan_selections WHERE day_id = ? ORDER BY slot ASC, id ASC`,
		dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var sels []model.MealPlanSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		sels = append(sels, *sel)
	}
	return sels, rows.Err()
}

func (s *MealPlanStore) SelectionsForSlot(dayID int64, slot model.MealSlot) ([]model.MealPlanSelection, error) {
	rows, err := s.db.Query(
		`SELECT `+selectionCols+` FROM meal_plan_selections WHERE day_id = ? AND slot = ? ORDER BY id ASC`,
		dayID, slot,
	)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var sels []model.MealPlanSelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		sels = append(sels, *sel)
	}
	return sels, rows.Err()
}
