package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeedLength bounds a single derivation seed.
	MaxSeedLength = 32
	// MaxSeeds bounds the number of seeds, bump excluded.
	MaxSeeds = 16

	derivedMarker = "ProgramDerivedAddress"
)

var (
	ErrSeedTooLong        = errors.New("crypto: derivation seed too long")
	ErrTooManySeeds       = errors.New("crypto: too many derivation seeds")
	ErrOnCurve            = errors.New("crypto: derived identity lies on the curve")
	ErrNoViableBump       = errors.New("crypto: no viable bump seed")
	ErrDerivationMismatch = errors.New("crypto: derivation does not match identity")
)

// IsOnCurve reports whether id is the x-coordinate of a secp256k1 point, in
// which case a private key could exist for it.
func IsOnCurve(id Identity) bool {
	compressed := make([]byte, 0, IdentityLength+1)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, id[:]...)
	_, err := crypto.DecompressPubkey(compressed)
	return err == nil
}

// CreateDerivedIdentity hashes seeds, bump and program into an identity. It
// fails with ErrOnCurve when the result could have a private key.
func CreateDerivedIdentity(program Identity, seeds [][]byte, bump uint8) (Identity, error) {
	if len(seeds) > MaxSeeds {
		return ZeroIdentity, ErrTooManySeeds
	}
	parts := make([][]byte, 0, len(seeds)+3)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ZeroIdentity, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
		}
		parts = append(parts, seed)
	}
	parts = append(parts, []byte{bump}, program[:], []byte(derivedMarker))

	var id Identity
	copy(id[:], crypto.Keccak256(parts...))
	if IsOnCurve(id) {
		return ZeroIdentity, ErrOnCurve
	}
	return id, nil
}

// FindDerivedIdentity searches bumps from 255 downwards and returns the first
// off-curve identity together with its bump.
func FindDerivedIdentity(program Identity, seeds ...[]byte) (Identity, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		id, err := CreateDerivedIdentity(program, seeds, uint8(bump))
		if err == nil {
			return id, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return ZeroIdentity, 0, err
		}
	}
	return ZeroIdentity, 0, ErrNoViableBump
}

// DerivedAuthority is the proof that Identity was derived from Program with
// Seeds and Bump. It carries no key material.
type DerivedAuthority struct {
	Program  Identity
	Seeds    [][]byte
	Bump     uint8
	Identity Identity
}

// Verify recomputes the derivation.
func (d *DerivedAuthority) Verify() error {
	if d == nil {
		return ErrDerivationMismatch
	}
	id, err := CreateDerivedIdentity(d.Program, d.Seeds, d.Bump)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	if !bytes.Equal(id[:], d.Identity[:]) {
		return ErrDerivationMismatch
	}
	return nil
}

// Authority names the identity approving an action. A nil Derived means the
// identity must have signed the enclosing transaction; otherwise Derived is
// checked structurally.
type Authority struct {
	Identity Identity
	Derived  *DerivedAuthority
}

// SignerAuthority builds an authority backed by a transaction signature.
func SignerAuthority(id Identity) Authority {
	return Authority{Identity: id}
}

// IsDerived reports whether the authority is backed by a derivation proof.
func (a Authority) IsDerived() bool {
	return a.Derived != nil
}
