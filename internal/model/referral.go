package model

// Referral aggregates a user's staked value in whole token units.
type Referral struct {
	ID          int64 `json:"id"`
	UserID      int64 `json:"user_id"`
	StakedValue int64 `json:"staked_value"`
}
