package model

import "time"

type MealSlot string

const (
	SlotLunch  MealSlot = "lunch"
	SlotDinner MealSlot = "dinner"
)

type MealPlanDay struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	DayDate     string    `json:"day_date"`
	AssigneeID  *int64    `json:"assignee_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MealPlanSelection struct {
	ID        int64     `json:"id"`
	DayID     int64     `json:"day_id"`
	Slot      MealSlot  `json:"slot"`
	DishName  string    `json:"dish_name"`
	CreatedAt time.Time `json:"created_at"`
}
