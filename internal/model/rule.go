package model

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurringTaskRule binds a template to a cadence. The catch-up generator
// advances NextRunDate; everything else is managed through the rules API.
type RecurringTaskRule struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	TemplateID  int64     `json:"template_id"`
	Frequency   Frequency `json:"frequency"`
	AssigneeID  *int64    `json:"assignee_id"`
	NextRunDate string    `json:"next_run_date"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
