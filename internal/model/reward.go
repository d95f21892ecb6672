package model

import "time"

// ClaimedRewardRecord is an append-only ledger entry for a vault claim.
type ClaimedRewardRecord struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FundID         int64     `json:"fund_id"`
	Chain          string    `json:"chain"`
	RewardCurrency string    `json:"reward_currency"`
	Balance        string    `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
}

// EarningTypeClaimReward tags experience awarded for claiming rewards.
const EarningTypeClaimReward = "ClaimReward"

// EarningRecord is a user progression entry handed to the earning service.
type EarningRecord struct {
	Type          string         `json:"type"`
	UserID        int64          `json:"user_id"`
	EarningExp    int64          `json:"earning_exp"`
	EarningPoints int64          `json:"earning_points"`
	Receipt       EarningReceipt `json:"receipt"`
}

// EarningReceipt is the receipt payload stored alongside an EarningRecord.
type EarningReceipt struct {
	UserID int64 `json:"userId"`
	Exp    int64 `json:"exp"`
	Points int64 `json:"points"`
}
