package reward

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"dgenerate/crypto"
)

// LedgerSize is the encoded size of a Ledger.
const LedgerSize = discriminatorSize + crypto.IdentityLength + 8 + 8 + 8 + crypto.IdentityLength

const discriminatorSize = 8

var ledgerDiscriminator = func() [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:GameState"))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}()

// Ledger is the persisted emission state of one reward stream.
//
// TotalMinted counts emission since the last halving and CurrentReward only
// ever shrinks. MintID and HalvingThreshold never change after creation.
type Ledger struct {
	MintID           crypto.Identity `json:"mintId"`
	TotalMinted      uint64          `json:"totalMinted"`
	CurrentReward    uint64          `json:"currentReward"`
	HalvingThreshold uint64          `json:"halvingThreshold"`
	Authority        crypto.Identity `json:"authority"`
}

// NewLedger returns a fresh ledger for mint under params.
func NewLedger(mint, authority crypto.Identity, params Params) *Ledger {
	return &Ledger{
		MintID:           mint,
		CurrentReward:    params.InitialReward,
		HalvingThreshold: params.HalvingThreshold,
		Authority:        authority,
	}
}

// Clone returns a copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Validate checks the fields every stored ledger must satisfy.
func (l *Ledger) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil ledger", ErrInvalidLedger)
	}
	if l.MintID.IsZero() {
		return fmt.Errorf("%w: mint required", ErrInvalidLedger)
	}
	if l.Authority.IsZero() {
		return fmt.Errorf("%w: authority required", ErrInvalidLedger)
	}
	if l.HalvingThreshold == 0 {
		return fmt.Errorf("%w: halving threshold must be positive", ErrInvalidLedger)
	}
	return nil
}

// BelowThreshold reports whether the counter sits below the halving
// threshold, which holds after every reward smaller than the threshold.
func (l *Ledger) BelowThreshold() bool {
	return l.TotalMinted < l.HalvingThreshold
}

// RemainingUntilHalving is the emission left before the next halving, zero
// when the next call halves regardless.
func (l *Ledger) RemainingUntilHalving() uint64 {
	if !l.BelowThreshold() {
		return 0
	}
	return l.HalvingThreshold - l.TotalMinted
}

// MarshalBinary encodes the fixed 96-byte layout: discriminator, mint,
// totalMinted, currentReward, halvingThreshold, authority. Integers are
// little-endian.
func (l *Ledger) MarshalBinary() ([]byte, error) {
	buf := make([]byte, LedgerSize)
	off := copy(buf, ledgerDiscriminator[:])
	off += copy(buf[off:], l.MintID[:])
	binary.LittleEndian.PutUint64(buf[off:], l.TotalMinted)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], l.CurrentReward)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], l.HalvingThreshold)
	off += 8
	copy(buf[off:], l.Authority[:])
	return buf, nil
}

// UnmarshalBinary decodes the layout written by MarshalBinary.
func (l *Ledger) UnmarshalBinary(data []byte) error {
	if len(data) != LedgerSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidLedger, LedgerSize, len(data))
	}
	if !bytes.Equal(data[:discriminatorSize], ledgerDiscriminator[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidLedger)
	}
	off := discriminatorSize
	copy(l.MintID[:], data[off:off+crypto.IdentityLength])
	off += crypto.IdentityLength
	l.TotalMinted = binary.LittleEndian.Uint64(data[off:])
	off += 8
	l.CurrentReward = binary.LittleEndian.Uint64(data[off:])
	off += 8
	l.HalvingThreshold = binary.LittleEndian.Uint64(data[off:])
	off += 8
	copy(l.Authority[:], data[off:off+crypto.IdentityLength])
	return nil
}
