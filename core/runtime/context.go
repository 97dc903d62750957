package runtime

import (
	"fmt"

	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/native/token"
)

// txContext is the view a program gets of the runtime while one transaction
// executes. It satisfies both reward.State and token.State.
type txContext struct {
	rt      *Runtime
	signers map[crypto.Identity]struct{}
	// program owns every account created or written through this context.
	program crypto.Identity
	// caller is the program that invoked program, zero at the top level.
	caller  crypto.Identity
	genesis bool
	events  []*types.Event
}

func newTxContext(rt *Runtime, signers []crypto.Identity, program crypto.Identity) *txContext {
	set := make(map[crypto.Identity]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	return &txContext{rt: rt, signers: set, program: program}
}

func (c *txContext) LoadAccount(id crypto.Identity) (*types.Account, error) {
	return c.rt.state.Account(id)
}

func (c *txContext) CreateAccount(id crypto.Identity, data []byte) error {
	if !c.genesis && !c.IsSigner(id) {
		return fmt.Errorf("%w: %s", ErrCreateUnsigned, id)
	}
	return c.rt.state.CreateAccount(id, c.program, data)
}

func (c *txContext) WriteAccount(id crypto.Identity, data []byte) error {
	return c.rt.state.WriteAccount(id, c.program, data)
}

func (c *txContext) IsSigner(id crypto.Identity) bool {
	if c.genesis {
		return true
	}
	_, ok := c.signers[id]
	return ok
}

// DeriveAuthority hands out a capability for an identity derived from the
// executing program. The capability is honoured only by programs that program
// calls into during this transaction.
func (c *txContext) DeriveAuthority(seeds ...[]byte) (crypto.Authority, error) {
	id, bump, err := crypto.FindDerivedIdentity(c.program, seeds...)
	if err != nil {
		return crypto.Authority{}, err
	}
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return crypto.Authority{
		Identity: id,
		Derived:  &crypto.DerivedAuthority{Program: c.program, Seeds: copied, Bump: bump, Identity: id},
	}, nil
}

func (c *txContext) VerifyAuthority(auth crypto.Authority) error {
	if auth.Derived == nil {
		if c.genesis {
			return nil
		}
		if _, ok := c.signers[auth.Identity]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, auth.Identity)
		}
		return nil
	}
	if auth.Derived.Identity != auth.Identity {
		return crypto.ErrDerivationMismatch
	}
	if c.caller.IsZero() || auth.Derived.Program != c.caller {
		return fmt.Errorf("%w: %s", ErrForeignDerivation, auth.Derived.Program)
	}
	return auth.Derived.Verify()
}

// MintTo calls into the token program on behalf of the executing program.
func (c *txContext) MintTo(mint, account crypto.Identity, authority crypto.Authority, amount uint64) error {
	restore := c.invoke(token.ProgramID)
	defer restore()
	_, err := c.rt.tokens.MintTo(c, mint, account, authority, amount)
	return err
}

func (c *txContext) invoke(program crypto.Identity) func() {
	prevProgram, prevCaller := c.program, c.caller
	c.caller = c.program
	c.program = program
	return func() {
		c.program = prevProgram
		c.caller = prevCaller
	}
}

func (c *txContext) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	c.events = append(c.events, evt)
}
