package model

import "testing"

func TestCheckpointCovers(t *testing.T) {
	cp := Checkpoint{BlockNumber: 100, LogIndex: 5}

	cases := []struct {
		name     string
		block    uint64
		logIndex uint64
		want     bool
	}{
		{name: "same block lower index", block: 100, logIndex: 4, want: true},
		{name: "same block same index", block: 100, logIndex: 5, want: true},
		{name: "same block higher index", block: 100, logIndex: 7, want: false},
		{name: "later block", block: 101, logIndex: 0, want: false},
	}

	for _, tc := range cases {
		if got := cp.Covers(tc.block, tc.logIndex); got != tc.want {
			t.Fatalf("%s: covers(%d, %d) = %v, want %v", tc.name, tc.block, tc.logIndex, got, tc.want)
		}
	}
}

func TestCheckpointZeroValue(t *testing.T) {
	var cp Checkpoint
	if !cp.Covers(0, 0) {
		t.Fatalf("zero checkpoint should cover block 0 index 0")
	}
	if cp.Covers(0, 1) {
		t.Fatalf("zero checkpoint should not cover block 0 index 1")
	}
}

func TestFundPackageForSlot(t *testing.T) {
	fund := Fund{
		VaultAddress: "0xAbCdEf0000000000000000000000000000000001",
		DefaultPackages: []Package{
			{ID: 10, PackageID: "1"},
			{ID: 11, PackageID: "2"},
		},
	}

	pkg, ok := fund.PackageForSlot("2")
	if !ok || pkg.ID != 11 {
		t.Fatalf("package mismatch: %+v %v", pkg, ok)
	}
	if _, ok := fund.PackageForSlot("3"); ok {
		t.Fatalf("unexpected package for slot 3")
	}
	if !fund.IsVault("0xabcdef0000000000000000000000000000000001") {
		t.Fatalf("vault comparison should ignore case")
	}
}
