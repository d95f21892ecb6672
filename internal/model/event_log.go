package model

import "time"

// EventAction names the state transition an applied log produced.
type EventAction string

const (
	ActionTransferValue EventAction = "TransferValue"
	ActionChangeSlot    EventAction = "ChangeSlot"
	ActionMintPackage   EventAction = "MintPackage"
	ActionBurn          EventAction = "Burn"
	ActionUnstake       EventAction = "Unstake"
	ActionStake         EventAction = "Stake"
	ActionTransferToken EventAction = "TransferToken"
	ActionClaim         EventAction = "Claim"
)

// EventLogRecord is the append-only audit row written for every applied log.
type EventLogRecord struct {
	ID               int64       `json:"id"`
	Action           EventAction `json:"action"`
	BlockNumber      uint64      `json:"block_number"`
	BlockHash        string      `json:"block_hash"`
	TransactionIndex uint64      `json:"transaction_index"`
	TransactionHash  string      `json:"transaction_hash"`
	LogIndex         uint64      `json:"log_index"`
	ContractAddress  string      `json:"contract_address"`
	Data             string      `json:"data"`
	Topics           []string    `json:"topics"`
	CreatedAt        time.Time   `json:"created_at"`
}
