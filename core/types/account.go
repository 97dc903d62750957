package types

import (
	"errors"

	"dgenerate/crypto"
)

var (
	ErrAccountExists   = errors.New("account: already exists")
	ErrAccountNotFound = errors.New("account: not found")
	ErrAccountOwner    = errors.New("account: owned by another program")
)

// Account is a program-owned record in the keyed account store. Only the
// owning program may rewrite Data.
type Account struct {
	Owner crypto.Identity
	Data  []byte
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{Owner: a.Owner, Data: append([]byte(nil), a.Data...)}
}
