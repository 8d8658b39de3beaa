package model

import "time"

type TxnReason string

const (
	ReasonTaskApproval     TxnReason = "task_approval"
	ReasonRewardRedemption TxnReason = "reward_redemption"
	ReasonContribution     TxnReason = "contribution"
)

// PointTransaction is an immutable ledger entry. Rows are only ever
// inserted; corrections are new transactions.
type PointTransaction struct {
	ID                 int64     `json:"id"`
	HouseholdID        int64     `json:"household_id"`
	UserID             int64     `json:"user_id"`
	Amount             int       `json:"amount"`
	Reason             TxnReason `json:"reason"`
	RelatedTaskID      *int64    `json:"related_task_id,omitempty"`
	RelatedRewardUseID *int64    `json:"related_reward_use_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// PointBalance is a read-side projection; the transaction log stays the
// source of truth.
type PointBalance struct {
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}
