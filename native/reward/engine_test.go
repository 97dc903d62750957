package reward

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/native/token"
)

// mockState keeps every account in one map and attributes writes to the
// program currently executing, the way the runtime does.
type mockState struct {
	accounts map[crypto.Identity]*types.Account
	signers  map[crypto.Identity]bool
	program  crypto.Identity
	events   []*types.Event
	tokens   *token.Engine
}

func newMockState(signers ...crypto.Identity) *mockState {
	st := &mockState{
		accounts: make(map[crypto.Identity]*types.Account),
		signers:  make(map[crypto.Identity]bool),
		program:  ProgramID,
		tokens:   token.NewEngine(),
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
	m.accounts[id] = &types.Account{Owner: m.program, Data: append([]byte(nil), data...)}
	return nil
}

func (m *mockState) WriteAccount(id crypto.Identity, data []byte) error {
	acct, ok := m.accounts[id]
	if !ok {
		return types.ErrAccountNotFound
	}
	if acct.Owner != m.program {
		return types.ErrAccountOwner
	}
	acct.Data = append([]byte(nil), data...)
	return nil
}

func (m *mockState) IsSigner(id crypto.Identity) bool { return m.signers[id] }

func (m *mockState) DeriveAuthority(seeds ...[]byte) (crypto.Authority, error) {
	id, bump, err := crypto.FindDerivedIdentity(m.program, seeds...)
	if err != nil {
		return crypto.Authority{}, err
	}
	return crypto.Authority{
		Identity: id,
		Derived:  &crypto.DerivedAuthority{Program: m.program, Seeds: seeds, Bump: bump, Identity: id},
	}, nil
}

func (m *mockState) VerifyAuthority(auth crypto.Authority) error {
	if auth.Derived == nil {
		if !m.signers[auth.Identity] {
			return errors.New("missing signature")
		}
		return nil
	}
	if auth.Derived.Program != ProgramID {
		return errors.New("foreign derivation")
	}
	return auth.Derived.Verify()
}

func (m *mockState) MintTo(mint, account crypto.Identity, authority crypto.Authority, amount uint64) error {
	caller := m.program
	m.program = token.ProgramID
	defer func() { m.program = caller }()
	_, err := m.tokens.MintTo(m, mint, account, authority, amount)
	return err
}

func (m *mockState) AppendEvent(evt *types.Event) { m.events = append(m.events, evt) }

func (m *mockState) balance(t *testing.T, id crypto.Identity) uint64 {
	t.Helper()
	acct, err := token.DecodeAccount(m.accounts[id])
	require.NoError(t, err)
	return acct.Amount
}

type fixture struct {
	st        *mockState
	engine    *Engine
	ledger    crypto.Identity
	mint      crypto.Identity
	recipient crypto.Identity
	authority crypto.Identity
}

// newFixture creates a mint whose authority is the derived game authority,
// a recipient token account and an initialized ledger.
func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	engine, err := NewEngine(params)
	require.NoError(t, err)
	gameAuthority, _, err := engine.MintAuthority()
	require.NoError(t, err)

	f := &fixture{
		engine:    engine,
		ledger:    crypto.ProgramIdentity("ledger"),
		mint:      crypto.ProgramIdentity("mint"),
		recipient: crypto.ProgramIdentity("recipient"),
		authority: crypto.ProgramIdentity("authority"),
	}
	f.st = newMockState(f.authority)

	f.st.program = token.ProgramID
	_, err = f.st.tokens.CreateMint(f.st, f.mint, 9, gameAuthority)
	require.NoError(t, err)
	_, err = f.st.tokens.CreateAccount(f.st, f.recipient, f.mint, crypto.ProgramIdentity("player"))
	require.NoError(t, err)
	f.st.program = ProgramID

	_, err = engine.Initialize(f.st, f.ledger, f.mint, f.authority)
	require.NoError(t, err)
	return f
}

func (f *fixture) setCounters(t *testing.T, total, reward uint64) {
	t.Helper()
	ledger, err := f.engine.LoadLedger(f.st, f.ledger)
	require.NoError(t, err)
	ledger.TotalMinted = total
	ledger.CurrentReward = reward
	encoded, err := ledger.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, f.st.WriteAccount(f.ledger, encoded))
}

func (f *fixture) reward(t *testing.T) (*RewardResult, error) {
	t.Helper()
	return f.engine.RewardUser(f.st, RewardRequest{Ledger: f.ledger, Mint: f.mint, Recipient: f.recipient})
}

func TestInitializeSetsDefaults(t *testing.T) {
	f := newFixture(t, DefaultParams())
	ledger, err := f.engine.LoadLedger(f.st, f.ledger)
	require.NoError(t, err)
	require.Equal(t, &Ledger{
		MintID:           f.mint,
		TotalMinted:      0,
		CurrentReward:    10_000,
		HalvingThreshold: 10_000_000_000,
		Authority:        f.authority,
	}, ledger)
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.setCounters(t, 42, 7)

	_, err := f.engine.Initialize(f.st, f.ledger, f.mint, f.authority)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	require.Equal(t, 6003, Code(err))

	ledger, err := f.engine.LoadLedger(f.st, f.ledger)
	require.NoError(t, err)
	require.Equal(t, uint64(42), ledger.TotalMinted)
	require.Equal(t, uint64(7), ledger.CurrentReward)
}

func TestInitializeRequiresAuthoritySignature(t *testing.T) {
	f := newFixture(t, DefaultParams())
	_, err := f.engine.Initialize(f.st, crypto.ProgramIdentity("other-ledger"), f.mint, crypto.ProgramIdentity("stranger"))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestInitializeRejectsNonMint(t *testing.T) {
	f := newFixture(t, DefaultParams())
	_, err := f.engine.Initialize(f.st, crypto.ProgramIdentity("other-ledger"), f.recipient, f.authority)
	require.ErrorIs(t, err, ErrMintMismatch)
}

func TestRewardWithoutHalving(t *testing.T) {
	f := newFixture(t, DefaultParams())

	res, err := f.reward(t)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), res.Amount)
	require.False(t, res.Halved)
	require.Equal(t, uint64(10_000), res.Ledger.TotalMinted)
	require.Equal(t, uint64(10_000), res.Ledger.CurrentReward)
	require.Equal(t, uint64(10_000), f.st.balance(t, f.recipient))

	gameAuthority, _, err := f.engine.MintAuthority()
	require.NoError(t, err)
	require.Equal(t, gameAuthority, res.Authority)
}

func TestRewardHalvesOncePerCall(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.setCounters(t, 9_999_999_999, 10_000)

	res, err := f.reward(t)
	require.NoError(t, err)
	require.True(t, res.Halved)
	require.Equal(t, uint64(10_000), res.Amount, "the pre-halving reward is paid")

	ledger, err := f.engine.LoadLedger(f.st, f.ledger)
	require.NoError(t, err)
	require.Equal(t, uint64(9_999), ledger.TotalMinted)
	require.Equal(t, uint64(5_000), ledger.CurrentReward)
	require.Equal(t, uint64(10_000), f.st.balance(t, f.recipient))

	var seen []string
	for _, evt := range f.st.events {
		seen = append(seen, evt.Type)
	}
	require.Contains(t, seen, "reward.halved")
}

func TestRewardLargerThanThresholdHalvesOnlyOnce(t *testing.T) {
	params := DefaultParams()
	params.InitialReward = 100
	params.HalvingThreshold = 10
	f := newFixture(t, params)

	res, err := f.reward(t)
	require.NoError(t, err)
	require.True(t, res.Halved)
	require.Equal(t, uint64(90), res.Ledger.TotalMinted)
	require.Equal(t, uint64(50), res.Ledger.CurrentReward)
	require.False(t, res.Ledger.BelowThreshold())
}

func TestRewardOverflowLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.setCounters(t, math.MaxUint64-1, 10_000)

	_, err := f.reward(t)
	require.ErrorIs(t, err, ErrCalculationOverflow)
	require.Equal(t, 6000, Code(err))

	ledger, err := f.engine.LoadLedger(f.st, f.ledger)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64-1), ledger.TotalMinted)
	require.Equal(t, uint64(0), f.st.balance(t, f.recipient))
}

func TestRewardIsMonotonic(t *testing.T) {
	params := DefaultParams()
	params.InitialReward = 64
	params.HalvingThreshold = 100
	f := newFixture(t, params)

	last := params.InitialReward
	var paid uint64
	halvings := 0
	for i := 0; i < 50; i++ {
		before, err := f.engine.LoadLedger(f.st, f.ledger)
		require.NoError(t, err)
		crosses := before.TotalMinted+before.CurrentReward >= before.HalvingThreshold

		res, err := f.reward(t)
		require.NoError(t, err)
		require.Equal(t, crosses, res.Halved, "call %d", i)
		require.Equal(t, before.CurrentReward, res.Amount)
		require.LessOrEqual(t, res.Ledger.CurrentReward, last)
		require.True(t, res.Ledger.BelowThreshold(), "call %d", i)
		if res.Halved {
			halvings++
		}
		last = res.Ledger.CurrentReward
		paid += res.Amount
	}
	require.Positive(t, halvings)
	require.Equal(t, paid, f.st.balance(t, f.recipient))
}

func TestRewardRejectsForeignMint(t *testing.T) {
	f := newFixture(t, DefaultParams())
	_, err := f.engine.RewardUser(f.st, RewardRequest{Ledger: f.ledger, Mint: crypto.ProgramIdentity("elsewhere"), Recipient: f.recipient})
	require.ErrorIs(t, err, ErrMintMismatch)
}

func TestRewardWithoutDelegatedMintAuthority(t *testing.T) {
	f := newFixture(t, DefaultParams())

	stolen := crypto.ProgramIdentity("mint-2")
	f.st.program = token.ProgramID
	_, err := f.st.tokens.CreateMint(f.st, stolen, 9, f.authority)
	require.NoError(t, err)
	f.st.program = ProgramID

	ledgerID := crypto.ProgramIdentity("ledger-2")
	_, err = f.engine.Initialize(f.st, ledgerID, stolen, f.authority)
	require.NoError(t, err)

	_, err = f.engine.RewardUser(f.st, RewardRequest{Ledger: ledgerID, Mint: stolen, Recipient: f.recipient})
	require.ErrorIs(t, err, ErrMintAuthorityInvalid)
	require.Equal(t, 6004, Code(err))
}

func TestRewardRecipientMustHoldLedgerMint(t *testing.T) {
	f := newFixture(t, DefaultParams())

	other := crypto.ProgramIdentity("mint-2")
	foreign := crypto.ProgramIdentity("foreign-account")
	f.st.program = token.ProgramID
	_, err := f.st.tokens.CreateMint(f.st, other, 9, f.authority)
	require.NoError(t, err)
	_, err = f.st.tokens.CreateAccount(f.st, foreign, other, f.authority)
	require.NoError(t, err)
	f.st.program = ProgramID

	_, err = f.engine.RewardUser(f.st, RewardRequest{Ledger: f.ledger, Mint: f.mint, Recipient: foreign})
	require.ErrorIs(t, err, token.ErrMintMismatch)
}

func TestRequireAuthorityGatesRewards(t *testing.T) {
	params := DefaultParams()
	params.RequireAuthority = true
	f := newFixture(t, params)

	delete(f.st.signers, f.authority)
	_, err := f.reward(t)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 6002, Code(err))

	f.st.signers[f.authority] = true
	_, err = f.reward(t)
	require.NoError(t, err)
}

func TestAdjustReward(t *testing.T) {
	f := newFixture(t, DefaultParams())

	_, err := f.engine.AdjustReward(f.st, f.ledger, 20_000)
	require.ErrorIs(t, err, ErrRewardIncrease)

	ledger, err := f.engine.AdjustReward(f.st, f.ledger, 2_500)
	require.NoError(t, err)
	require.Equal(t, uint64(2_500), ledger.CurrentReward)

	delete(f.st.signers, f.authority)
	_, err = f.engine.AdjustReward(f.st, f.ledger, 1)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoadLedgerMissing(t *testing.T) {
	f := newFixture(t, DefaultParams())
	_, err := f.engine.LoadLedger(f.st, crypto.ProgramIdentity("missing"))
	require.ErrorIs(t, err, ErrLedgerNotFound)

	_, err = f.engine.LoadLedger(f.st, f.mint)
	require.ErrorIs(t, err, ErrInvalidLedger)
}

func TestNewEngineValidatesParams(t *testing.T) {
	_, err := NewEngine(Params{InitialReward: 1, HalvingThreshold: 0, AuthoritySeed: "x"})
	require.ErrorIs(t, err, ErrInvalidParams)
}
