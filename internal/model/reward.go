package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type RewardUseStatus string

const (
	RewardUseRequested RewardUseStatus = "requested"
	RewardUseApproved  RewardUseStatus = "approved"
	RewardUseRejected  RewardUseStatus = "rejected"
)

// RewardUse records a redemption request. CostPoints snapshots the reward's
// cost at request time so later catalog edits don't change what approval
// debits.
type RewardUse struct {
	ID          int64           `json:"id"`
	HouseholdID int64           `json:"household_id"`
	RewardID    int64           `json:"reward_id"`
	UserID      int64           `json:"user_id"`
	Status      RewardUseStatus `json:"status"`
	CostPoints  int             `json:"cost_points"`
	RequestedAt time.Time       `json:"requested_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy  *int64          `json:"resolved_by,omitempty"`
}
