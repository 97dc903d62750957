package reward

import "errors"

var (
	ErrCalculationOverflow  = errors.New("reward: calculation overflow")
	ErrInvalidAPIResponse   = errors.New("reward: invalid api response")
	ErrUnauthorized         = errors.New("reward: unauthorized")
	ErrAlreadyInitialized   = errors.New("reward: ledger already initialized")
	ErrMintAuthorityInvalid = errors.New("reward: mint authority invalid")
	ErrMintMismatch         = errors.New("reward: mint does not match ledger")
	ErrRewardIncrease       = errors.New("reward: reward may only decrease")
	ErrLedgerNotFound       = errors.New("reward: ledger not found")
	ErrInvalidLedger        = errors.New("reward: invalid ledger")
	ErrInvalidParams        = errors.New("reward: invalid params")
)

// Kind names an error class in the reward taxonomy. Kinds and codes are part
// of the RPC surface and must stay stable.
type Kind struct {
	Code int
	Name string
	err  error
}

var kinds = []Kind{
	{6000, "CalculationOverflow", ErrCalculationOverflow},
	{6001, "InvalidApiResponse", ErrInvalidAPIResponse},
	{6002, "Unauthorized", ErrUnauthorized},
	{6003, "AlreadyInitialized", ErrAlreadyInitialized},
	{6004, "MintAuthorityInvalid", ErrMintAuthorityInvalid},
	{6005, "MintMismatch", ErrMintMismatch},
	{6006, "RewardIncrease", ErrRewardIncrease},
	{6007, "LedgerNotFound", ErrLedgerNotFound},
	{6008, "InvalidLedger", ErrInvalidLedger},
	{6009, "InvalidParams", ErrInvalidParams},
}

// Classify returns the taxonomy entry err belongs to.
func Classify(err error) (Kind, bool) {
	if err == nil {
		return Kind{}, false
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return Kind{}, false
}

// Code returns the numeric code of err, or 0 when err is not a reward error.
func Code(err error) int {
	k, ok := Classify(err)
	if !ok {
		return 0
	}
	return k.Code
}
