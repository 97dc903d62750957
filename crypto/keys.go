package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// IdentityPrefix is the human-readable bech32 prefix for identities.
const IdentityPrefix = "dg"

// IdentityLength is the byte length of an Identity.
const IdentityLength = 32

// Identity is a 32-byte account identifier. Keypair identities are the
// keccak256 hash of the uncompressed public key; derived identities come from
// FindDerivedIdentity and have no private key.
type Identity [IdentityLength]byte

// ZeroIdentity is the unset identity.
var ZeroIdentity Identity

var ErrInvalidIdentity = errors.New("crypto: invalid identity")

// IdentityFromBytes copies b into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLength {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIdentity, IdentityLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ProgramIdentity returns the well-known identity of a native program.
func ProgramIdentity(name string) Identity {
	var id Identity
	copy(id[:], crypto.Keccak256([]byte("program:"+name)))
	return id
}

// ParseIdentity accepts a bech32 string with the dg prefix or a 0x-prefixed
// hex string.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ZeroIdentity, fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return ZeroIdentity, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
		}
		return IdentityFromBytes(decoded)
	}
	hrp, data, err := bech32.Decode(trimmed)
	if err != nil {
		return ZeroIdentity, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if hrp != IdentityPrefix {
		return ZeroIdentity, fmt.Errorf("%w: unsupported prefix %q", ErrInvalidIdentity, hrp)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ZeroIdentity, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return IdentityFromBytes(conv)
}

// MustParseIdentity is ParseIdentity for constants and tests.
func MustParseIdentity(raw string) Identity {
	id, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identity) String() string {
	conv, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(IdentityPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex renders the identity as 0x-prefixed hex.
func (id Identity) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id Identity) Bytes() []byte {
	out := make([]byte, IdentityLength)
	copy(out, id[:])
	return out
}

func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// Less orders identities bytewise.
func (id Identity) Less(other Identity) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// MarshalText renders the bech32 form so identities read naturally in JSON,
// TOML and YAML.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Identity is shorthand for k.PubKey().Identity().
func (k *PrivateKey) Identity() Identity {
	return k.PubKey().Identity()
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, k.PrivateKey)
}

func (k *PublicKey) Identity() Identity {
	var id Identity
	copy(id[:], crypto.Keccak256(crypto.FromECDSAPub(k.PublicKey)[1:]))
	return id
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverIdentity returns the identity that produced sig over digest.
func RecoverIdentity(digest, sig []byte) (Identity, error) {
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return ZeroIdentity, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return (&PublicKey{pub}).Identity(), nil
}
