package token

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/core/types"
	"dgenerate/crypto"
)

type mockState struct {
	accounts map[crypto.Identity]*types.Account
	signers  map[crypto.Identity]bool
	caller   crypto.Identity
	events   []*types.Event
}

func newMockState(signers ...crypto.Identity) *mockState {
	st := &mockState{
		accounts: make(map[crypto.Identity]*types.Account),
		signers:  make(map[crypto.Identity]bool),
	}
	for _, s := range signers {
		st.signers[s] = true
	}
	return st
}

func (m *mockState) LoadAccount(id crypto.Identity) (*types.Account, error) {
	return m.accounts[id].Clone(), nil
}

func (m *mockState) CreateAccount(id crypto.Identity, data []byte) error {
	if _, ok := m.accounts[id]; ok {
		return types.ErrAccountExists
	}
	m.accounts[id] = &types.Account{Owner: ProgramID, Data: append([]byte(nil), data...)}
	return nil
}

func (m *mockState) WriteAccount(id crypto.Identity, data []byte) error {
	acct, ok := m.accounts[id]
	if !ok {
		return types.ErrAccountNotFound
	}
	acct.Data = append([]byte(nil), data...)
	return nil
}

func (m *mockState) VerifyAuthority(auth crypto.Authority) error {
	if auth.Derived == nil {
		if !m.signers[auth.Identity] {
			return errors.New("missing signature")
		}
		return nil
	}
	if auth.Derived.Program != m.caller {
		return errors.New("foreign derivation")
	}
	return auth.Derived.Verify()
}

func (m *mockState) AppendEvent(evt *types.Event) {
	m.events = append(m.events, evt)
}

func ids(names ...string) []crypto.Identity {
	out := make([]crypto.Identity, len(names))
	for i, n := range names {
		out[i] = crypto.ProgramIdentity(n)
	}
	return out
}

func setupMint(t *testing.T, st *mockState, authority crypto.Identity) (crypto.Identity, crypto.Identity) {
	t.Helper()
	engine := NewEngine()
	accounts := ids("mint", "holder-account")
	_, err := engine.CreateMint(st, accounts[0], 9, authority)
	require.NoError(t, err)
	_, err = engine.CreateAccount(st, accounts[1], accounts[0], crypto.ProgramIdentity("holder"))
	require.NoError(t, err)
	return accounts[0], accounts[1]
}

func TestMintToBySigner(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	st := newMockState(authority)
	mint, account := setupMint(t, st, authority)

	engine := NewEngine()
	acct, err := engine.MintTo(st, mint, account, crypto.SignerAuthority(authority), 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acct.Amount)

	m, err := engine.LoadMint(st, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(500), m.Supply)
	require.Equal(t, "token.minted", st.events[len(st.events)-1].Type)
}

func TestMintToRejectsWrongAuthority(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	intruder := crypto.ProgramIdentity("intruder")
	st := newMockState(authority, intruder)
	mint, account := setupMint(t, st, authority)

	_, err := NewEngine().MintTo(st, mint, account, crypto.SignerAuthority(intruder), 1)
	require.ErrorIs(t, err, ErrAuthorityRejected)
}

func TestMintToRequiresSignature(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	st := newMockState()
	mint, account := setupMint(t, st, authority)

	_, err := NewEngine().MintTo(st, mint, account, crypto.SignerAuthority(authority), 1)
	require.ErrorIs(t, err, ErrAuthorityRejected)
}

func TestDerivedAuthorityOnlyServesItsProgram(t *testing.T) {
	program := crypto.ProgramIdentity("rewards")
	seeds := [][]byte{[]byte("game_authority")}
	derived, bump, err := crypto.FindDerivedIdentity(program, seeds...)
	require.NoError(t, err)

	st := newMockState()
	mint, account := setupMint(t, st, derived)
	auth := crypto.Authority{
		Identity: derived,
		Derived:  &crypto.DerivedAuthority{Program: program, Seeds: seeds, Bump: bump, Identity: derived},
	}

	st.caller = crypto.ProgramIdentity("someone-else")
	_, err = NewEngine().MintTo(st, mint, account, auth, 10)
	require.ErrorIs(t, err, ErrAuthorityRejected)

	st.caller = program
	acct, err := NewEngine().MintTo(st, mint, account, auth, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), acct.Amount)

	// The raw identity without a derivation proof is never a signer.
	_, err = NewEngine().MintTo(st, mint, account, crypto.SignerAuthority(derived), 10)
	require.ErrorIs(t, err, ErrAuthorityRejected)
}

func TestMintToChecksAccountMint(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	st := newMockState(authority)
	mint, _ := setupMint(t, st, authority)

	engine := NewEngine()
	other := crypto.ProgramIdentity("other-mint")
	_, err := engine.CreateMint(st, other, 6, authority)
	require.NoError(t, err)
	foreign := crypto.ProgramIdentity("foreign-account")
	_, err = engine.CreateAccount(st, foreign, other, authority)
	require.NoError(t, err)

	_, err = engine.MintTo(st, mint, foreign, crypto.SignerAuthority(authority), 1)
	require.ErrorIs(t, err, ErrMintMismatch)
}

func TestMintToOverflowLeavesStateUntouched(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	st := newMockState(authority)
	mint, account := setupMint(t, st, authority)

	engine := NewEngine()
	_, err := engine.MintTo(st, mint, account, crypto.SignerAuthority(authority), math.MaxUint64)
	require.NoError(t, err)
	_, err = engine.MintTo(st, mint, account, crypto.SignerAuthority(authority), 1)
	require.ErrorIs(t, err, ErrOverflow)

	acct, err := engine.LoadAccount(st, account)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), acct.Amount)
}

func TestSetMintAuthority(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	next := crypto.ProgramIdentity("next")
	st := newMockState(authority)
	mint, account := setupMint(t, st, authority)

	engine := NewEngine()
	require.NoError(t, engine.SetMintAuthority(st, mint, crypto.SignerAuthority(authority), next))

	_, err := engine.MintTo(st, mint, account, crypto.SignerAuthority(authority), 1)
	require.ErrorIs(t, err, ErrAuthorityRejected)

	err = engine.SetMintAuthority(st, mint, crypto.SignerAuthority(authority), authority)
	require.ErrorIs(t, err, ErrAuthorityRejected)
}

func TestCreateMintTwice(t *testing.T) {
	authority := crypto.ProgramIdentity("authority")
	st := newMockState()
	engine := NewEngine()
	id := crypto.ProgramIdentity("mint")
	_, err := engine.CreateMint(st, id, 0, authority)
	require.NoError(t, err)
	_, err = engine.CreateMint(st, id, 0, authority)
	require.ErrorIs(t, err, ErrMintExists)

	_, err = engine.CreateMint(st, crypto.ProgramIdentity("x"), 0, crypto.ZeroIdentity)
	require.ErrorIs(t, err, ErrNoAuthority)
}

func TestDecodeRejectsForeignOwner(t *testing.T) {
	_, err := DecodeMint(&types.Account{Owner: crypto.ProgramIdentity("other")})
	require.ErrorIs(t, err, ErrInvalidMint)
	_, err = DecodeAccount(nil)
	require.ErrorIs(t, err, ErrAccountNotFound)
}
