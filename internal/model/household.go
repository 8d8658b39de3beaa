package model

import "time"

type Household struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	ContributionRate int       `json:"contribution_rate"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type User struct {
	ID                       int64     `json:"id"`
	HouseholdID              int64     `json:"household_id"`
	Email                    string    `json:"email"`
	Name                     string    `json:"name"`
	Role                     string    `json:"role"`
	PendingContributionCount int       `json:"pending_contribution_count"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}
