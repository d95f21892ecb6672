package sft

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// sftABIJSON holds the ERC-3525 events watched on fund SFT contracts.
const sftABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "_to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "_tokenId", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "_fromTokenId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "_toTokenId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_value", "type": "uint256"}
    ],
    "name": "TransferValue",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "_tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "_oldSlot", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "_newSlot", "type": "uint256"}
    ],
    "name": "SlotChanged",
    "type": "event"
  }
]`

// vaultABIJSON holds the reward vault's claim event.
const vaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "Claim",
    "type": "event"
  }
]`

var (
	sftABI     abi.ABI
	sftABIOnce sync.Once
	sftABIErr  error

	vaultABI     abi.ABI
	vaultABIOnce sync.Once
	vaultABIErr  error
)

// SFTABI returns the parsed SFT contract ABI.
func SFTABI() (abi.ABI, error) {
	sftABIOnce.Do(func() {
		sftABI, sftABIErr = abi.JSON(strings.NewReader(sftABIJSON))
	})
	return sftABI, sftABIErr
}

// VaultABI returns the parsed vault contract ABI.
func VaultABI() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultABIJSON))
	})
	return vaultABI, vaultABIErr
}
