package model

import "strings"

// Fund is the configuration root that ties an SFT contract to its vault.
type Fund struct {
	ID              int64     `json:"id"`
	Chain           string    `json:"chain"`
	BaseCurrency    string    `json:"base_currency"`
	SFTAddress      string    `json:"sft_address"`
	VaultAddress    string    `json:"vault_address"`
	DefaultPackages []Package `json:"default_packages"`
}

// Package is a fund's default package, keyed on-chain by slot.
type Package struct {
	ID        int64  `json:"id"`
	PackageID string `json:"package_id"`
	Name      string `json:"name"`
}

// HasSFT reports whether the fund has an SFT contract configured.
func (f Fund) HasSFT() bool {
	return strings.TrimSpace(f.SFTAddress) != ""
}

// HasVault reports whether the fund has a vault contract configured.
func (f Fund) HasVault() bool {
	return strings.TrimSpace(f.VaultAddress) != ""
}

// PackageForSlot returns the default package whose PackageID equals slot.
func (f Fund) PackageForSlot(slot string) (Package, bool) {
	for _, pkg := range f.DefaultPackages {
		if pkg.PackageID == slot {
			return pkg, true
		}
	}
	return Package{}, false
}

// IsVault compares address to the fund's vault contract, ignoring case.
func (f Fund) IsVault(address string) bool {
	return f.HasVault() && strings.EqualFold(f.VaultAddress, address)
}
