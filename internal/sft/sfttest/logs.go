// Package sfttest builds ABI-encoded logs for tests.
package sfttest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"sftsync/internal/sft"
)

// Pos places a log in the chain.
type Pos struct {
	Block    uint64
	LogIndex uint
	TxIndex  uint
}

// Transfer builds a Transfer(_from, _to, _tokenId) log.
func Transfer(contract, from, to common.Address, tokenID int64, pos Pos) types.Log {
	event := mustSFT().Events["Transfer"]
	return build(contract, event.ID, nil, []common.Hash{
		addressTopic(from),
		addressTopic(to),
		common.BigToHash(big.NewInt(tokenID)),
	}, pos)
}

// TransferValue builds a TransferValue(_fromTokenId, _toTokenId, _value) log.
func TransferValue(contract common.Address, fromTokenID, toTokenID int64, value *big.Int, pos Pos) types.Log {
	event := mustSFT().Events["TransferValue"]
	data, err := event.Inputs.NonIndexed().Pack(value)
	if err != nil {
		panic(err)
	}
	return build(contract, event.ID, data, []common.Hash{
		common.BigToHash(big.NewInt(fromTokenID)),
		common.BigToHash(big.NewInt(toTokenID)),
	}, pos)
}

// SlotChanged builds a SlotChanged(_tokenId, _oldSlot, _newSlot) log.
func SlotChanged(contract common.Address, tokenID, oldSlot, newSlot int64, pos Pos) types.Log {
	event := mustSFT().Events["SlotChanged"]
	return build(contract, event.ID, nil, []common.Hash{
		common.BigToHash(big.NewInt(tokenID)),
		common.BigToHash(big.NewInt(oldSlot)),
		common.BigToHash(big.NewInt(newSlot)),
	}, pos)
}

// Claim builds a vault Claim(owner, amount) log.
func Claim(vault, owner common.Address, amount *big.Int, pos Pos) types.Log {
	parsed, err := sft.VaultABI()
	if err != nil {
		panic(err)
	}
	event := parsed.Events["Claim"]
	data, err := event.Inputs.NonIndexed().Pack(amount)
	if err != nil {
		panic(err)
	}
	return build(vault, event.ID, data, []common.Hash{addressTopic(owner)}, pos)
}

// Wei scales whole units by 10^18.
func Wei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func build(contract common.Address, topic0 common.Hash, data []byte, indexed []common.Hash, pos Pos) types.Log {
	topics := append([]common.Hash{topic0}, indexed...)
	return types.Log{
		Address:     contract,
		Topics:      topics,
		Data:        data,
		BlockNumber: pos.Block,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(pos.Block)),
		TxHash:      common.BigToHash(new(big.Int).SetUint64(pos.Block*1000 + uint64(pos.LogIndex))),
		TxIndex:     pos.TxIndex,
		Index:       pos.LogIndex,
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func mustSFT() abi.ABI {
	parsed, err := sft.SFTABI()
	if err != nil {
		panic(err)
	}
	return parsed
}
