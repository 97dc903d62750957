package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"dgenerate/core/genesis"
	"dgenerate/crypto"
	"dgenerate/native/reward"
	"dgenerate/native/token"
	"dgenerate/observability/otel"
)

var genesisKey = []byte("genesis/applied")

// ApplyGenesis creates the declared mints, token accounts and ledgers in one
// commit. Mints declared with the game authority are handed to the reward
// program's derived identity. Genesis can only be applied to a state that has
// not executed any transaction.
func (r *Runtime) ApplyGenesis(ctx context.Context, spec *genesis.GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("runtime: genesis spec required")
	}
	_, span := otel.Tracer().Start(ctx, "runtime.genesis")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	applied, err := r.state.KVGet(genesisKey, nil)
	if err != nil {
		return err
	}
	if applied || r.height > 0 {
		return ErrGenesisApplied
	}
	gameAuthority, _, err := r.rewards.MintAuthority()
	if err != nil {
		return err
	}

	txc := newTxContext(r, nil, token.ProgramID)
	txc.genesis = true
	err = r.applyGenesis(txc, spec, gameAuthority)
	if err == nil {
		err = r.state.KVPut(genesisKey, true)
	}
	if err == nil {
		err = r.commit(0)
	}
	if err != nil {
		r.rollback()
		return fmt.Errorf("runtime: apply genesis: %w", err)
	}
	r.logger.Info("genesis applied",
		slog.Int("mints", len(spec.ParsedMints())),
		slog.Int("ledgers", len(spec.ParsedLedgers())),
		slog.String("gameAuthority", gameAuthority.String()))
	r.publish(&Receipt{Type: "genesis", Root: r.trie.Root(), Events: txc.events, Timestamp: r.clock().UTC()})
	return nil
}

func (r *Runtime) applyGenesis(txc *txContext, spec *genesis.GenesisSpec, gameAuthority crypto.Identity) error {
	txc.program = token.ProgramID
	for _, mint := range spec.ParsedMints() {
		authority := mint.Authority
		if mint.UsesGameAuthority() {
			authority = gameAuthority
		}
		if _, err := r.tokens.CreateMint(txc, mint.ID, mint.Decimals, authority); err != nil {
			return fmt.Errorf("mint %s: %w", mint.ID, err)
		}
	}
	for _, acct := range spec.ParsedTokenAccounts() {
		if _, err := r.tokens.CreateAccount(txc, acct.ID, acct.Mint, acct.Owner); err != nil {
			return fmt.Errorf("token account %s: %w", acct.ID, err)
		}
	}
	txc.program = reward.ProgramID
	for _, ledger := range spec.ParsedLedgers() {
		created, err := r.rewards.Initialize(txc, ledger.ID, ledger.Mint, ledger.Authority)
		if err != nil {
			return fmt.Errorf("ledger %s: %w", ledger.ID, err)
		}
		if err := r.state.KVAppend(ledgerIndexKey, ledger.ID.Bytes()); err != nil {
			return err
		}
		r.metrics.SetCurrentReward(ledger.ID.String(), created.CurrentReward)
	}
	return nil
}
