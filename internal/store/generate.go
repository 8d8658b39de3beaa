package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/recurrence"
	"github.com/tmkelly/choreboard/internal/task"
)

// Meal-prep tasks created by the linker.
const (
	mealTaskCategory = "meal"
	mealTaskPoints   = 2
)

// Generator runs the lazy catch-up pass that precedes task views:
// materialize due recurring rules into tasks, then link planned meals to
// prep tasks. Each rule and each slot commits in its own transaction, so a
// failure mid-pass leaves prior progress durable and the remainder safe to
// retry on the next request.
type Generator struct {
	db *sql.DB
}

func NewGenerator(db *sql.DB) *Generator {
	return &Generator{db: db}
}

// Run executes the rule pass then the meal pass for one household and
// returns the ids of the tasks it created. Tasks created before an error
// are still returned alongside it.
func (g *Generator) Run(householdID int64, asOf time.Time, actorID int64) ([]int64, error) {
	var created []int64

	ruleIDs, err := g.dueRuleIDs(householdID, asOf)
	if err != nil {
		return created, err
	}
	for _, ruleID := range ruleIDs {
		taskID, err := g.runRule(householdID, ruleID, asOf, actorID)
		if err != nil {
			return created, fmt.Errorf("rule %d: %w", ruleID, err)
		}
		if taskID != 0 {
			created = append(created, taskID)
		}
	}

	slots, err := g.plannedSlots(householdID, asOf)
	if err != nil {
		return created, err
	}
	for _, sl := range slots {
		taskID, err := g.linkSlot(householdID, sl, actorID)
		if err != nil {
			return created, fmt.Errorf("meal day %d slot %s: %w", sl.dayID, sl.slot, err)
		}
		if taskID != 0 {
			created = append(created, taskID)
		}
	}
	return created, nil
}

func (g *Generator) dueRuleIDs(householdID int64, asOf time.Time) ([]int64, error) {
	rows, err := g.db.Query(
		`SELECT id FROM recurring_task_rules WHERE household_id = ? AND active = 1 AND next_run_date <= ? ORDER BY id ASC`,
		householdID, asOf.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rule id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// runRule creates the single catch-up task for a due rule and advances its
// next run date, in one transaction. Returns 0 if the rule turned out not to
// be due after all (deactivated or advanced by a concurrent pass).
func (g *Generator) runRule(householdID, ruleID int64, asOf time.Time, actorID int64) (int64, error) {
	tx, err := g.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		frequency     model.Frequency
		assigneeID    sql.NullInt64
		nextRunDate   string
		active        int
		templateID    int64
		name          string
		category      string
		defaultPoints sql.NullInt64
	)
	err = tx.QueryRow(
		`SELECT r.frequency, r.assignee_id, r.next_run_date, r.active, r.template_id, t.name, t.category, t.default_points
		FROM recurring_task_rules r
		JOIN task_templates t ON t.id = r.template_id
		WHERE r.id = ? AND r.household_id = ?`,
		ruleID, householdID,
	).Scan(&frequency, &assigneeID, &nextRunDate, &active, &templateID, &name, &category, &defaultPoints)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rule: %w", err)
	}
	if active == 0 {
		return 0, nil
	}

	nextRun, err := time.Parse(model.DateLayout, nextRunDate)
	if err != nil {
		return 0, fmt.Errorf("parse next_run_date %q: %w", nextRunDate, err)
	}
	if nextRun.After(recurrence.StartOfDay(asOf)) {
		return 0, nil
	}

	due, next, err := recurrence.CatchUp(frequency, nextRun, asOf)
	if err != nil {
		return 0, err
	}

	p := CreateTaskParams{
		HouseholdID: householdID,
		Title:       name,
		Category:    category,
		CreatedBy:   actorID,
		TemplateID:  &templateID,
		DueDate:     due.Format(model.DateLayout),
	}
	if assigneeID.Valid {
		p.AssigneeID = &assigneeID.Int64
	}
	if defaultPoints.Valid {
		v := int(defaultPoints.Int64)
		p.PointsProposed = &v
	}

	taskID, err := createTaskTx(tx, p)
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(
		`UPDATE recurring_task_rules SET next_run_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND next_run_date = ?`,
		next.Format(model.DateLayout), ruleID, nextRunDate,
	)
	if err != nil {
		return 0, fmt.Errorf("advance rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Another pass advanced the rule first; the rollback discards our task.
		return 0, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return taskID, nil
}

type plannedSlot struct {
	dayID      int64
	dayDate    string
	assigneeID *int64
	slot       model.MealSlot
}

func (g *Generator) plannedSlots(householdID int64, asOf time.Time) ([]plannedSlot, error) {
	rows, err := g.db.Query(
		`SELECT d.id, d.day_date, d.assignee_id, s.slot
		FROM meal_plan_days d
		JOIN meal_plan_selections s ON s.day_id = d.id
		WHERE d.household_id = ? AND d.day_date <= ?
		GROUP BY d.id, d.day_date, d.assignee_id, s.slot
		ORDER BY d.day_date ASC, d.id ASC, s.slot ASC`,
		householdID, asOf.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list planned slots: %w", err)
	}
	defer rows.Close()

	var slots []plannedSlot
	for rows.Next() {
		var sl plannedSlot
		var assigneeID sql.NullInt64
		if err := rows.Scan(&sl.dayID, &sl.dayDate, &assigneeID, &sl.slot); err != nil {
			return nil, fmt.Errorf("scan planned slot: %w", err)
		}
		if assigneeID.Valid {
			sl.assigneeID = &assigneeID.Int64
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

// linkSlot creates the prep task for one (day, slot) pair unless any task,
// cancelled included, has ever carried that linkage. Returns 0 when the slot
// was already used.
func (g *Generator) linkSlot(householdID int64, sl plannedSlot, actorID int64) (int64, error) {
	tx, err := g.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE household_id = ? AND meal_plan_day_id = ? AND meal_slot = ?`,
		householdID, sl.dayID, sl.slot,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("check slot: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	rows, err := tx.Query(
		`SELECT dish_name FROM meal_plan_selections WHERE day_id = ? AND slot = ? ORDER BY id ASC`,
		sl.dayID, sl.slot,
	)
	if err != nil {
		return 0, fmt.Errorf("list dishes: %w", err)
	}
	var dishes []string
	for rows.Next() {
		var dish string
		if err := rows.Scan(&dish); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan dish: %w", err)
		}
		dishes = append(dishes, dish)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()
	if len(dishes) == 0 {
		return 0, nil
	}

	points := mealTaskPoints
	p := CreateTaskParams{
		HouseholdID:    householdID,
		Title:          mealTaskTitle(sl.slot, dishes),
		Category:       mealTaskCategory,
		CreatedBy:      actorID,
		AssigneeID:     sl.assigneeID,
		PointsProposed: &points,
		DueDate:        sl.dayDate,
		MealPlanDayID:  &sl.dayID,
		MealSlot:       sl.slot,
	}
	taskID, err := createTaskTx(tx, p)
	if err != nil {
		var dup task.DuplicateLinkageError
		if errors.As(err, &dup) {
			return 0, nil
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return taskID, nil
}

func mealTaskTitle(slot model.MealSlot, dishes []string) string {
	name := "Meal"
	switch slot {
	case model.SlotLunch:
		name = "Lunch"
	case model.SlotDinner:
		name = "Dinner"
	}
	return name + " prep: " + strings.Join(dishes, ", ")
}
