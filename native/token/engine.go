package token

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/rlp"

	"dgenerate/core/events"
	"dgenerate/core/types"
	"dgenerate/crypto"
)

// State is what the token program needs from the surrounding runtime. Writes
// are attributed to ProgramID by the runtime.
type State interface {
	LoadAccount(id crypto.Identity) (*types.Account, error)
	CreateAccount(id crypto.Identity, data []byte) error
	WriteAccount(id crypto.Identity, data []byte) error
	// VerifyAuthority checks that auth is backed either by a transaction
	// signature or by a derivation owned by the calling program.
	VerifyAuthority(auth crypto.Authority) error
	AppendEvent(evt *types.Event)
}

// Engine implements the token program.
type Engine struct{}

// NewEngine creates a token engine.
func NewEngine() *Engine {
	return &Engine{}
}

// LoadMint reads and decodes the mint at id.
func (e *Engine) LoadMint(st State, id crypto.Identity) (*Mint, error) {
	account, err := st.LoadAccount(id)
	if err != nil {
		return nil, err
	}
	return DecodeMint(account)
}

// LoadAccount reads and decodes the token account at id.
func (e *Engine) LoadAccount(st State, id crypto.Identity) (*Account, error) {
	account, err := st.LoadAccount(id)
	if err != nil {
		return nil, err
	}
	return DecodeAccount(account)
}

// CreateMint registers a mint with zero supply.
func (e *Engine) CreateMint(st State, id crypto.Identity, decimals uint8, authority crypto.Identity) (*Mint, error) {
	if authority.IsZero() {
		return nil, ErrNoAuthority
	}
	mint := &Mint{Decimals: decimals, MintAuthority: authority, Initialized: true}
	encoded, err := rlp.EncodeToBytes(mint)
	if err != nil {
		return nil, err
	}
	if err := st.CreateAccount(id, encoded); err != nil {
		if errors.Is(err, types.ErrAccountExists) {
			return nil, fmt.Errorf("%w: %s", ErrMintExists, id)
		}
		return nil, err
	}
	st.AppendEvent(events.TokenMintCreated{Mint: id, MintAuthority: authority, Decimals: decimals}.Event())
	return mint, nil
}

// CreateAccount opens an empty balance of mint for owner.
func (e *Engine) CreateAccount(st State, id, mintID, owner crypto.Identity) (*Account, error) {
	if _, err := e.LoadMint(st, mintID); err != nil {
		return nil, err
	}
	acct := &Account{Mint: mintID, Owner: owner}
	if err := e.storeNew(st, id, acct); err != nil {
		return nil, err
	}
	st.AppendEvent(events.TokenAccountCreated{Account: id, Mint: mintID, Owner: owner}.Event())
	return acct, nil
}

func (e *Engine) storeNew(st State, id crypto.Identity, acct *Account) error {
	encoded, err := rlp.EncodeToBytes(acct)
	if err != nil {
		return err
	}
	return st.CreateAccount(id, encoded)
}

// SetMintAuthority hands the mint to next. The current authority must approve.
func (e *Engine) SetMintAuthority(st State, mintID crypto.Identity, current crypto.Authority, next crypto.Identity) error {
	if next.IsZero() {
		return ErrNoAuthority
	}
	mint, err := e.LoadMint(st, mintID)
	if err != nil {
		return err
	}
	if err := e.checkAuthority(st, mint, current); err != nil {
		return err
	}
	previous := mint.MintAuthority
	mint.MintAuthority = next
	if err := e.writeMint(st, mintID, mint); err != nil {
		return err
	}
	st.AppendEvent(events.TokenAuthorityChanged{Mint: mintID, OldAuthority: previous, NewAuthority: next}.Event())
	return nil
}

// MintTo creates amount new units of mintID and credits them to accountID.
// Nothing is written unless every check passes.
func (e *Engine) MintTo(st State, mintID, accountID crypto.Identity, authority crypto.Authority, amount uint64) (*Account, error) {
	mint, err := e.LoadMint(st, mintID)
	if err != nil {
		return nil, err
	}
	if err := e.checkAuthority(st, mint, authority); err != nil {
		return nil, err
	}
	acct, err := e.LoadAccount(st, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Mint != mintID {
		return nil, fmt.Errorf("%w: account %s holds %s", ErrMintMismatch, accountID, acct.Mint)
	}
	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: supply", ErrOverflow)
	}
	balance, carry := bits.Add64(acct.Amount, amount, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: balance", ErrOverflow)
	}
	mint.Supply = supply
	acct.Amount = balance
	if err := e.writeMint(st, mintID, mint); err != nil {
		return nil, err
	}
	encoded, err := rlp.EncodeToBytes(acct)
	if err != nil {
		return nil, err
	}
	if err := st.WriteAccount(accountID, encoded); err != nil {
		return nil, err
	}
	st.AppendEvent(events.TokenMinted{
		Mint:      mintID,
		Account:   accountID,
		Authority: authority.Identity,
		Amount:    amount,
		Supply:    supply,
	}.Event())
	return acct, nil
}

func (e *Engine) checkAuthority(st State, mint *Mint, auth crypto.Authority) error {
	if auth.Identity != mint.MintAuthority {
		return fmt.Errorf("%w: expected %s, got %s", ErrAuthorityRejected, mint.MintAuthority, auth.Identity)
	}
	if err := st.VerifyAuthority(auth); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorityRejected, err)
	}
	return nil
}

func (e *Engine) writeMint(st State, id crypto.Identity, mint *Mint) error {
	encoded, err := rlp.EncodeToBytes(mint)
	if err != nil {
		return err
	}
	return st.WriteAccount(id, encoded)
}
