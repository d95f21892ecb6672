package model

// Wallet maps an on-chain address to a platform user.
type Wallet struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	UserID  int64  `json:"user_id"`
}
