package reward

import (
	"errors"
	"fmt"

	"dgenerate/core/events"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/native/token"
)

// ProgramID owns every reward ledger and is the program the mint authority is
// derived from.
var ProgramID = crypto.ProgramIdentity("dgenerate")

// State describes what the reward engine needs from the runtime. Accounts it
// creates or writes are owned by ProgramID.
type State interface {
	LoadAccount(id crypto.Identity) (*types.Account, error)
	CreateAccount(id crypto.Identity, data []byte) error
	WriteAccount(id crypto.Identity, data []byte) error
	IsSigner(id crypto.Identity) bool
	// DeriveAuthority returns a capability for the identity derived from
	// ProgramID and seeds. It is only valid inside the current transaction.
	DeriveAuthority(seeds ...[]byte) (crypto.Authority, error)
	MintTo(mint, account crypto.Identity, authority crypto.Authority, amount uint64) error
	AppendEvent(evt *types.Event)
}

// Engine runs the reward state machine for one parameter set.
type Engine struct {
	params Params
}

// NewEngine validates params and returns an engine.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params {
	return e.params
}

// MintAuthority returns the derived identity that must hold mint authority for
// every ledger served by this engine.
func (e *Engine) MintAuthority() (crypto.Identity, uint8, error) {
	return crypto.FindDerivedIdentity(ProgramID, e.params.AuthoritySeeds()...)
}

// LoadLedger reads and decodes the ledger stored at id.
func (e *Engine) LoadLedger(st State, id crypto.Identity) (*Ledger, error) {
	account, err := st.LoadAccount(id)
	if err != nil {
		return nil, err
	}
	return DecodeLedger(account)
}

// DecodeLedger decodes a stored account as a ledger.
func DecodeLedger(account *types.Account) (*Ledger, error) {
	if account == nil {
		return nil, ErrLedgerNotFound
	}
	if account.Owner != ProgramID {
		return nil, fmt.Errorf("%w: owned by %s", ErrInvalidLedger, account.Owner)
	}
	ledger := new(Ledger)
	if err := ledger.UnmarshalBinary(account.Data); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Initialize creates the ledger at id for mint. The authority must sign.
func (e *Engine) Initialize(st State, id, mint, authority crypto.Identity) (*Ledger, error) {
	if !st.IsSigner(authority) {
		return nil, fmt.Errorf("%w: authority %s did not sign", ErrUnauthorized, authority)
	}
	mintAccount, err := st.LoadAccount(mint)
	if err != nil {
		return nil, err
	}
	if _, err := token.DecodeMint(mintAccount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintMismatch, err)
	}
	ledger := NewLedger(mint, authority, e.params)
	if err := ledger.Validate(); err != nil {
		return nil, err
	}
	encoded, err := ledger.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := st.CreateAccount(id, encoded); err != nil {
		if errors.Is(err, types.ErrAccountExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, id)
		}
		return nil, err
	}
	st.AppendEvent(events.RewardLedgerInitialized{
		Ledger:           id,
		Mint:             mint,
		Authority:        authority,
		InitialReward:    ledger.CurrentReward,
		HalvingThreshold: ledger.HalvingThreshold,
	}.Event())
	return ledger, nil
}

// RewardRequest names the accounts a rewardUser call touches.
type RewardRequest struct {
	Ledger    crypto.Identity
	Mint      crypto.Identity
	Recipient crypto.Identity
	Caller    crypto.Identity
}

// RewardResult reports a completed payout.
type RewardResult struct {
	Amount    uint64          `json:"amount"`
	Halved    bool            `json:"halved"`
	Ledger    *Ledger         `json:"ledger"`
	Authority crypto.Identity `json:"authority"`
}

// RewardUser pays the current reward to the recipient token account and
// advances the ledger. Any failure, including one from the mint, aborts the
// enclosing transaction.
func (e *Engine) RewardUser(st State, req RewardRequest) (*RewardResult, error) {
	ledger, err := e.LoadLedger(st, req.Ledger)
	if err != nil {
		return nil, err
	}
	if req.Mint != ledger.MintID {
		return nil, fmt.Errorf("%w: ledger mints %s, got %s", ErrMintMismatch, ledger.MintID, req.Mint)
	}
	if e.params.RequireAuthority && !st.IsSigner(ledger.Authority) {
		return nil, fmt.Errorf("%w: authority %s did not sign", ErrUnauthorized, ledger.Authority)
	}

	step, err := NextStep(ledger)
	if err != nil {
		return nil, err
	}
	previous := ledger.CurrentReward
	step.Apply(ledger)
	encoded, err := ledger.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := st.WriteAccount(req.Ledger, encoded); err != nil {
		return nil, err
	}

	authority, err := st.DeriveAuthority(e.params.AuthoritySeeds()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintAuthorityInvalid, err)
	}
	if err := st.MintTo(ledger.MintID, req.Recipient, authority, step.Amount); err != nil {
		if errors.Is(err, token.ErrAuthorityRejected) {
			return nil, fmt.Errorf("%w: %v", ErrMintAuthorityInvalid, err)
		}
		return nil, err
	}

	st.AppendEvent(events.RewardPaid{
		Ledger:      req.Ledger,
		Recipient:   req.Recipient,
		Caller:      req.Caller,
		Amount:      step.Amount,
		TotalMinted: ledger.TotalMinted,
		NextReward:  ledger.CurrentReward,
		Halved:      step.Halved,
	}.Event())
	if step.Halved {
		st.AppendEvent(events.RewardHalved{
			Ledger:         req.Ledger,
			PreviousReward: previous,
			CurrentReward:  ledger.CurrentReward,
		}.Event())
	}
	return &RewardResult{
		Amount:    step.Amount,
		Halved:    step.Halved,
		Ledger:    ledger,
		Authority: authority.Identity,
	}, nil
}

// AdjustReward lets the ledger authority lower the current reward.
func (e *Engine) AdjustReward(st State, id crypto.Identity, reward uint64) (*Ledger, error) {
	ledger, err := e.LoadLedger(st, id)
	if err != nil {
		return nil, err
	}
	if !st.IsSigner(ledger.Authority) {
		return nil, fmt.Errorf("%w: authority %s did not sign", ErrUnauthorized, ledger.Authority)
	}
	if reward > ledger.CurrentReward {
		return nil, fmt.Errorf("%w: %d > %d", ErrRewardIncrease, reward, ledger.CurrentReward)
	}
	previous := ledger.CurrentReward
	ledger.CurrentReward = reward
	encoded, err := ledger.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := st.WriteAccount(id, encoded); err != nil {
		return nil, err
	}
	st.AppendEvent(events.RewardAdjusted{
		Ledger:         id,
		Authority:      ledger.Authority,
		PreviousReward: previous,
		CurrentReward:  reward,
	}.Event())
	return ledger, nil
}
