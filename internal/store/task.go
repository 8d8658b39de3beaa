package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tmkelly/choreboard/internal/model"
	"github.com/tmkelly/choreboard/internal/task"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assigneeID, claimantID, templateID, mealPlanDayID sql.NullInt64
	var pointsProposed, pointsActual sql.NullInt64
	var dueDate, mealSlot sql.NullString
	var claimedAt, startedAt, completedAt, approvedAt, cancelledAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Title, &t.Category, &t.Status, &t.CreatedBy,
		&assigneeID, &claimantID, &templateID, &pointsProposed, &pointsActual,
		&dueDate, &mealPlanDayID, &mealSlot,
		&t.CreatedAt, &claimedAt, &startedAt, &completedAt, &approvedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	if claimantID.Valid {
		t.ClaimantID = &claimantID.Int64
	}
	if templateID.Valid {
		t.TemplateID = &templateID.Int64
	}
	if pointsProposed.Valid {
		v := int(pointsProposed.Int64)
		t.PointsProposed = &v
	}
	if pointsActual.Valid {
		v := int(pointsActual.Int64)
		t.PointsActual = &v
	}
	t.DueDate = dueDate.String
	if mealPlanDayID.Valid {
		t.MealPlanDayID = &mealPlanDayID.Int64
	}
	t.MealSlot = model.MealSlot(mealSlot.String)
	if claimedAt.Valid {
		t.ClaimedAt = &claimedAt.Time
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if approvedAt.Valid {
		t.ApprovedAt = &approvedAt.Time
	}
	if cancelledAt.Valid {
		t.CancelledAt = &cancelledAt.Time
	}
	return &t, nil
}

const taskCols = `id, household_id, title, category, status, created_by, assignee_id, claimant_id, template_id, points_proposed, points_actual, due_date, meal_plan_day_id, meal_slot, created_at, claimed_at, started_at, completed_at, approved_at, cancelled_at`

type CreateTaskParams struct {
	HouseholdID    int64
	Title          string
	Category       string
	CreatedBy      int64
	AssigneeID     *int64
	TemplateID     *int64
	PointsProposed *int
	DueDate        string
	MealPlanDayID  *int64
	MealSlot       model.MealSlot
}

// createTaskTx inserts a task inside the caller's transaction. When meal
// linkage is supplied it first checks that no non-cancelled task already
// holds the (day, slot) pair; the partial unique index on tasks backs the
// same rule at the storage level.
func createTaskTx(tx *sql.Tx, p CreateTaskParams) (int64, error) {
	if p.MealPlanDayID != nil {
		var n int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM tasks WHERE household_id = ? AND meal_plan_day_id = ? AND meal_slot = ? AND status != 'cancelled'`,
			p.HouseholdID, *p.MealPlanDayID, p.MealSlot,
		).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("check meal linkage: %w", err)
		}
		if n > 0 {
			return 0, task.DuplicateLinkageError{MealPlanDayID: *p.MealPlanDayID, Slot: p.MealSlot}
		}
	}

	var assigneeID, templateID, mealPlanDayID sql.NullInt64
	if p.AssigneeID != nil {
		assigneeID = sql.NullInt64{Int64: *p.AssigneeID, Valid: true}
	}
	if p.TemplateID != nil {
		templateID = sql.NullInt64{Int64: *p.TemplateID, Valid: true}
	}
	if p.MealPlanDayID != nil {
		mealPlanDayID = sql.NullInt64{Int64: *p.MealPlanDayID, Valid: true}
	}
	var pointsProposed sql.NullInt64
	if p.PointsProposed != nil {
		pointsProposed = sql.NullInt64{Int64: int64(*p.PointsProposed), Valid: true}
	}
	var dueDate, mealSlot sql.NullString
	if p.DueDate != "" {
		dueDate = sql.NullString{String: p.DueDate, Valid: true}
	}
	if p.MealSlot != "" {
		mealSlot = sql.NullString{String: string(p.MealSlot), Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO tasks (household_id, title, category, created_by, assignee_id, template_id, points_proposed, due_date, meal_plan_day_id, meal_slot) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, p.Title, p.Category, p.CreatedBy, assigneeID, templateID, pointsProposed, dueDate, mealPlanDayID, mealSlot,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func getTaskTx(tx *sql.Tx, householdID, id int64) (*model.Task, error) {
	row := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ? AND household_id = ?`, id, householdID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) Create(p CreateTaskParams) (*model.Task, error) {
	if err := task.ValidateNew(p.Title, p.PointsProposed); err != nil {
		return nil, err
	}
	if (p.MealPlanDayID == nil) != (p.MealSlot == "") {
		return nil, task.ValidationError{Field: "meal_linkage", Reason: "meal_plan_day_id and meal_slot must be supplied together"}
	}
	if p.MealSlot != "" && p.MealSlot != model.SlotLunch && p.MealSlot != model.SlotDinner {
		return nil, task.ValidationError{Field: "meal_slot", Reason: "must be lunch or dinner"}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := createTaskTx(tx, p)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(p.HouseholdID, id)
}

func (s *TaskStore) GetByID(householdID, id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ? AND household_id = ?`, id, householdID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List(householdID int64, filter model.TaskFilter, actorID int64) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE household_id = ?`
	args := []any{householdID}

	switch filter {
	case model.FilterAssignedToMe:
		query += ` AND assignee_id = ? AND status IN ('open', 'claimed', 'in_progress')`
		args = append(args, actorID)
	case model.FilterCompleted:
		query += ` AND status IN ('completed', 'approved')`
	}
	query += ` ORDER BY due_date IS NULL, due_date ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// --- Lifecycle methods ---

// Each transition runs in one transaction: read the task, validate the
// transition and the actor, then apply a status-guarded UPDATE. The guard
// turns a lost race into InvalidTransitionError instead of a double apply.

func (s *TaskStore) Claim(householdID, id, actorID int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTaskTx(tx, householdID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := task.ValidateTransition(t.Status, model.TaskClaimed); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, claimant_id = ?, assignee_id = COALESCE(assignee_id, ?), claimed_at = ? WHERE id = ? AND status = ?`,
		model.TaskClaimed, actorID, actorID, time.Now().UTC(), id, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	if err := requireTransition(result, t.Status, model.TaskClaimed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

func (s *TaskStore) Start(householdID, id, actorID int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTaskTx(tx, householdID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := task.ValidateTransition(t.Status, model.TaskInProgress); err != nil {
		return nil, err
	}
	if t.ClaimantID == nil || *t.ClaimantID != actorID {
		return nil, task.NotAuthorizedError{Reason: "only the claimant can start this task"}
	}

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		model.TaskInProgress, time.Now().UTC(), id, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("start task: %w", err)
	}
	if err := requireTransition(result, t.Status, model.TaskInProgress); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

// Complete resolves the points to award before stamping the task: the
// caller's value if present, else the task's proposed points, else the
// template default, else zero.
func (s *TaskStore) Complete(householdID, id, actorID int64, points *int) (*model.Task, error) {
	if points != nil && *points < 0 {
		return nil, task.ValidationError{Field: "points_actual", Reason: "must not be negative"}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTaskTx(tx, householdID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := task.ValidateTransition(t.Status, model.TaskCompleted); err != nil {
		return nil, err
	}
	if t.ClaimantID == nil || *t.ClaimantID != actorID {
		return nil, task.NotAuthorizedError{Reason: "only the claimant can complete this task"}
	}

	var templateDefault *int
	if points == nil && t.PointsProposed == nil && t.TemplateID != nil {
		var def sql.NullInt64
		err := tx.QueryRow(`SELECT default_points FROM task_templates WHERE id = ?`, *t.TemplateID).Scan(&def)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("get template points: %w", err)
		}
		if def.Valid {
			v := int(def.Int64)
			templateDefault = &v
		}
	}
	actual := task.ResolveActualPoints(points, t.PointsProposed, templateDefault)

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, points_actual = ?, completed_at = ? WHERE id = ? AND status = ?`,
		model.TaskCompleted, actual, time.Now().UTC(), id, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if err := requireTransition(result, t.Status, model.TaskCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

// Approve transitions the task and appends its task_approval credit in the
// same transaction. A task is never observable as approved without the
// matching ledger row.
func (s *TaskStore) Approve(householdID, id, approverID int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTaskTx(tx, householdID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := task.ValidateTransition(t.Status, model.TaskApproved); err != nil {
		return nil, err
	}
	if t.ClaimantID != nil && *t.ClaimantID == approverID {
		return nil, task.NotAuthorizedError{Reason: "claimant cannot approve their own task"}
	}

	recipient := t.AssigneeID
	if recipient == nil {
		recipient = t.ClaimantID
	}
	if recipient == nil {
		return nil, fmt.Errorf("task %d has no assignee or claimant to credit", id)
	}
	amount := 0
	if t.PointsActual != nil {
		amount = *t.PointsActual
	}

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, approved_at = ? WHERE id = ? AND status = ?`,
		model.TaskApproved, time.Now().UTC(), id, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("approve task: %w", err)
	}
	if err := requireTransition(result, t.Status, model.TaskApproved); err != nil {
		return nil, err
	}
	if _, err := insertTransactionTx(tx, householdID, *recipient, amount, model.ReasonTaskApproval, &id, nil); err != nil {
		return nil, fmt.Errorf("credit approval: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

// Cancel is a household-level action: any member may cancel a task that has
// not yet been completed or approved.
func (s *TaskStore) Cancel(householdID, id int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTaskTx(tx, householdID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	if err := task.ValidateTransition(t.Status, model.TaskCancelled); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		model.TaskCancelled, time.Now().UTC(), id, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}
	if err := requireTransition(result, t.Status, model.TaskCancelled); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(householdID, id)
}

func requireTransition(result sql.Result, from, to model.TaskStatus) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return task.InvalidTransitionError{From: from, To: to}
	}
	return nil
}
