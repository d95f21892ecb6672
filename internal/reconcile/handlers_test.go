package reconcile

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"sftsync/internal/model"
	"sftsync/internal/sft"
)

func TestTransferAction(t *testing.T) {
	fund := &model.Fund{SFTAddress: sftAddr.Hex(), VaultAddress: "0x2222222222222222222222222222222222222222"}

	cases := []struct {
		name string
		from common.Address
		to   common.Address
		fund *model.Fund
		want model.EventAction
	}{
		{name: "mint", from: zeroAddr, to: alice, fund: fund, want: model.ActionMintPackage},
		{name: "burn", from: alice, to: zeroAddr, fund: fund, want: model.ActionBurn},
		{name: "unstake", from: vaultAddr, to: alice, fund: fund, want: model.ActionUnstake},
		{name: "stake", from: alice, to: vaultAddr, fund: fund, want: model.ActionStake},
		{name: "transfer", from: alice, to: bob, fund: fund, want: model.ActionTransferToken},
		{name: "mint without fund", from: zeroAddr, to: alice, want: model.ActionMintPackage},
		{name: "vault without fund", from: alice, to: vaultAddr, want: model.ActionTransferToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := sft.TransferToken{From: tc.from, To: tc.to, TokenID: big.NewInt(1)}
			if got := transferAction(ev, tc.fund); got != tc.want {
				t.Fatalf("transferAction = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseTokenValue(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "", want: "0"},
		{raw: "0", want: "0"},
		{raw: "123456789012345678901234567890", want: "123456789012345678901234567890"},
		{raw: "-5", want: "-5"},
		{raw: "1.25", want: "1.25"},
		{raw: "garbage", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseTokenValue(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseTokenValue(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseTokenValue(%q): %v", tc.raw, err)
		}
		if got.String() != tc.want {
			t.Fatalf("parseTokenValue(%q) = %s, want %s", tc.raw, got.String(), tc.want)
		}
	}
}
