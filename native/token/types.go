package token

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"dgenerate/core/types"
	"dgenerate/crypto"
)

// ProgramID owns every mint and token account.
var ProgramID = crypto.ProgramIdentity("token")

// Mint describes a fungible token. MintAuthority is the only identity allowed
// to create new supply; it may be a derived identity held by another program.
type Mint struct {
	Decimals      uint8
	Supply        uint64
	MintAuthority crypto.Identity
	Initialized   bool
}

// Clone returns a copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Account holds a balance of a single mint for Owner.
type Account struct {
	Mint   crypto.Identity
	Owner  crypto.Identity
	Amount uint64
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// DecodeMint decodes a stored account as a mint. The account must be owned by
// the token program.
func DecodeMint(account *types.Account) (*Mint, error) {
	if account == nil {
		return nil, ErrMintNotFound
	}
	if account.Owner != ProgramID {
		return nil, fmt.Errorf("%w: owned by %s", ErrInvalidMint, account.Owner)
	}
	mint := new(Mint)
	if err := rlp.DecodeBytes(account.Data, mint); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.Initialized {
		return nil, ErrInvalidMint
	}
	return mint, nil
}

// DecodeAccount decodes a stored account as a token account.
func DecodeAccount(account *types.Account) (*Account, error) {
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.Owner != ProgramID {
		return nil, fmt.Errorf("%w: owned by %s", ErrInvalidAccount, account.Owner)
	}
	acct := new(Account)
	if err := rlp.DecodeBytes(account.Data, acct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	return acct, nil
}
