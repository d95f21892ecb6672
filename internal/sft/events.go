package sft

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies a recognised event signature.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransferValue
	KindSlotChanged
	KindTransferToken
	KindClaim
)

func (k Kind) String() string {
	switch k {
	case KindTransferValue:
		return "TransferValue"
	case KindSlotChanged:
		return "SlotChanged"
	case KindTransferToken:
		return "TransferToken"
	case KindClaim:
		return "Claim"
	default:
		return "Unknown"
	}
}

// Event is a decoded log. The concrete type is one of TransferValue,
// SlotChanged, TransferToken or Claim.
type Event interface {
	Kind() Kind
	isEvent()
}

// TransferValue moves value between two tokens of the same slot.
type TransferValue struct {
	FromTokenID *big.Int
	ToTokenID   *big.Int
	Value       *big.Int
}

// SlotChanged reassigns a token to another slot (package).
type SlotChanged struct {
	TokenID *big.Int
	OldSlot *big.Int
	NewSlot *big.Int
}

// TransferToken is the ERC-721 style ownership transfer, including mint and burn.
type TransferToken struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// Claim is a reward claim emitted by a vault; Amount has 18 decimals.
type Claim struct {
	Owner  common.Address
	Amount *big.Int
}

func (TransferValue) Kind() Kind { return KindTransferValue }
func (SlotChanged) Kind() Kind   { return KindSlotChanged }
func (TransferToken) Kind() Kind { return KindTransferToken }
func (Claim) Kind() Kind         { return KindClaim }

func (TransferValue) isEvent() {}
func (SlotChanged) isEvent()   {}
func (TransferToken) isEvent() {}
func (Claim) isEvent()         {}

// IsMint reports a transfer out of the zero address.
func (t TransferToken) IsMint() bool {
	return t.From == (common.Address{})
}

// IsBurn reports a transfer into the zero address.
func (t TransferToken) IsBurn() bool {
	return t.To == (common.Address{})
}

// TokenIDHex renders a token id in its canonical stored form: 0x followed by
// 64 lowercase hex digits.
func TokenIDHex(id *big.Int) string {
	if id == nil {
		id = new(big.Int)
	}
	return common.BigToHash(id).Hex()
}
