package runtime

import "errors"

var (
	ErrNilTransaction    = errors.New("runtime: nil transaction")
	ErrPayerSignature    = errors.New("runtime: payer did not sign")
	ErrDuplicate         = errors.New("runtime: transaction already processed")
	ErrUnknownTxType     = errors.New("runtime: unknown transaction type")
	ErrCreateUnsigned    = errors.New("runtime: new account must sign its creation")
	ErrMissingSignature  = errors.New("runtime: authority did not sign")
	ErrForeignDerivation = errors.New("runtime: derived authority belongs to another program")
	ErrGenesisApplied    = errors.New("runtime: genesis already applied")
)
