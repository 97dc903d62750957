package events

import (
	"strconv"

	"dgenerate/core/types"
	"dgenerate/crypto"
)

const (
	TypeTokenMintCreated      = "token.mint.created"
	TypeTokenAccountCreated   = "token.account.created"
	TypeTokenAuthorityChanged = "token.mint.authority"
	TypeTokenMinted           = "token.minted"
)

type TokenMintCreated struct {
	Mint          crypto.Identity
	MintAuthority crypto.Identity
	Decimals      uint8
}

func (TokenMintCreated) EventType() string { return TypeTokenMintCreated }

func (e TokenMintCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMintCreated,
		Attributes: map[string]string{
			"mint":          e.Mint.String(),
			"mintAuthority": e.MintAuthority.String(),
			"decimals":      strconv.FormatUint(uint64(e.Decimals), 10),
		},
	}
}

type TokenAccountCreated struct {
	Account crypto.Identity
	Mint    crypto.Identity
	Owner   crypto.Identity
}

func (TokenAccountCreated) EventType() string { return TypeTokenAccountCreated }

func (e TokenAccountCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenAccountCreated,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"mint":    e.Mint.String(),
			"owner":   e.Owner.String(),
		},
	}
}

// TokenAuthorityChanged is emitted when a mint's authority is replaced. A
// derived identity as NewAuthority means only a program can mint from now on.
type TokenAuthorityChanged struct {
	Mint         crypto.Identity
	OldAuthority crypto.Identity
	NewAuthority crypto.Identity
}

func (TokenAuthorityChanged) EventType() string { return TypeTokenAuthorityChanged }

func (e TokenAuthorityChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenAuthorityChanged,
		Attributes: map[string]string{
			"mint":         e.Mint.String(),
			"oldAuthority": e.OldAuthority.String(),
			"newAuthority": e.NewAuthority.String(),
			"derived":      strconv.FormatBool(!crypto.IsOnCurve(e.NewAuthority)),
		},
	}
}

type TokenMinted struct {
	Mint      crypto.Identity
	Account   crypto.Identity
	Authority crypto.Identity
	Amount    uint64
	Supply    uint64
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"mint":      e.Mint.String(),
			"account":   e.Account.String(),
			"authority": e.Authority.String(),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"supply":    strconv.FormatUint(e.Supply, 10),
		},
	}
}
