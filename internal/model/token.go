package model

// TokenStatus is the lifecycle state of a semi-fungible token.
type TokenStatus string

const (
	TokenStatusHolding TokenStatus = "Holding"
	TokenStatusStaking TokenStatus = "Staking"
	TokenStatusBurned  TokenStatus = "Burned"
)

// Token is a semi-fungible token instance owned by a fund's SFT contract.
// TokenValue is an arbitrary-precision decimal string in wei.
type Token struct {
	ID              int64       `json:"id"`
	FundID          int64       `json:"fund_id"`
	ContractAddress string      `json:"contract_address"`
	TokenID         string      `json:"token_id"`
	Owner           string      `json:"owner"`
	TokenValue      string      `json:"token_value"`
	PackageID       *int64      `json:"package_id,omitempty"`
	Status          TokenStatus `json:"status"`
}
