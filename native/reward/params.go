package reward

import (
	"fmt"
	"strings"

	"dgenerate/crypto"
)

const (
	// DefaultInitialReward is the payout of a fresh ledger.
	DefaultInitialReward uint64 = 10_000
	// DefaultHalvingThreshold is the cumulative emission that triggers a
	// halving.
	DefaultHalvingThreshold uint64 = 10_000_000_000
	// DefaultAuthoritySeed derives the identity that holds mint authority.
	DefaultAuthoritySeed = "game_authority"
)

// Params configures a ledger family. One engine serves every ledger created
// with the same params.
type Params struct {
	InitialReward    uint64 `toml:"InitialReward" yaml:"initialReward" json:"initialReward"`
	HalvingThreshold uint64 `toml:"HalvingThreshold" yaml:"halvingThreshold" json:"halvingThreshold"`
	AuthoritySeed    string `toml:"AuthoritySeed" yaml:"authoritySeed" json:"authoritySeed"`
	// RequireAuthority restricts rewardUser to transactions signed by the
	// ledger authority. The default lets anyone trigger a payout.
	RequireAuthority bool `toml:"RequireAuthority" yaml:"requireAuthority" json:"requireAuthority"`
}

// DefaultParams returns the stock reward configuration.
func DefaultParams() Params {
	return Params{
		InitialReward:    DefaultInitialReward,
		HalvingThreshold: DefaultHalvingThreshold,
		AuthoritySeed:    DefaultAuthoritySeed,
	}
}

// ApplyDefaults fills unset fields with module defaults.
func (p *Params) ApplyDefaults() *Params {
	if p == nil {
		return nil
	}
	if p.InitialReward == 0 {
		p.InitialReward = DefaultInitialReward
	}
	if p.HalvingThreshold == 0 {
		p.HalvingThreshold = DefaultHalvingThreshold
	}
	if strings.TrimSpace(p.AuthoritySeed) == "" {
		p.AuthoritySeed = DefaultAuthoritySeed
	}
	return p
}

// Validate rejects params no ledger can be created with.
func (p Params) Validate() error {
	if p.InitialReward == 0 {
		return fmt.Errorf("%w: initial reward must be positive", ErrInvalidParams)
	}
	if p.HalvingThreshold == 0 {
		return fmt.Errorf("%w: halving threshold must be positive", ErrInvalidParams)
	}
	if p.AuthoritySeed == "" {
		return fmt.Errorf("%w: authority seed required", ErrInvalidParams)
	}
	if len(p.AuthoritySeed) > crypto.MaxSeedLength {
		return fmt.Errorf("%w: authority seed longer than %d bytes", ErrInvalidParams, crypto.MaxSeedLength)
	}
	return nil
}

// AuthoritySeeds returns the derivation seeds of the mint authority.
func (p Params) AuthoritySeeds() [][]byte {
	return [][]byte{[]byte(p.AuthoritySeed)}
}
