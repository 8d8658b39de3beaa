package model

import "time"

type TaskTemplate struct {
	ID            int64     `json:"id"`
	HouseholdID   int64     `json:"household_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	DefaultPoints *int      `json:"default_points"`
	Instructions  string    `json:"instructions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
