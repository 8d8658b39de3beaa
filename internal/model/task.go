package model

import "time"

// DateLayout is the storage format for date-only columns (due dates, rule
// run dates, meal-plan days).
const DateLayout = "2006-01-02"

type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskClaimed    TaskStatus = "claimed"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskApproved   TaskStatus = "approved"
	TaskCancelled  TaskStatus = "cancelled"
)

type Task struct {
	ID             int64      `json:"id"`
	HouseholdID    int64      `json:"household_id"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	Status         TaskStatus `json:"status"`
	CreatedBy      int64      `json:"created_by"`
	AssigneeID     *int64     `json:"assignee_id"`
	ClaimantID     *int64     `json:"claimant_id"`
	TemplateID     *int64     `json:"template_id"`
	PointsProposed *int       `json:"points_proposed"`
	PointsActual   *int       `json:"points_actual"`
	DueDate        string     `json:"due_date,omitempty"`
	MealPlanDayID  *int64     `json:"meal_plan_day_id,omitempty"`
	MealSlot       MealSlot   `json:"meal_slot,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}

// TaskFilter selects which slice of a household's tasks a list returns.
type TaskFilter string

const (
	FilterAssignedToMe TaskFilter = "assigned_to_me"
	FilterAll          TaskFilter = "all"
	FilterCompleted    TaskFilter = "completed"
)
