package rpc

import (
	"errors"
	"net/http"

	"dgenerate/core/runtime"
	"dgenerate/core/types"
	"dgenerate/crypto"
	"dgenerate/native/reward"
	"dgenerate/native/token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRejected       = -32003
	codeNotFound       = -32004
	codeUnavailable    = -32005
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020
)

// errorFor maps an execution or lookup failure to a JSON-RPC error. Reward
// program failures keep their program codes (6000 and up).
func errorFor(err error) (int, *RPCError) {
	if kind, ok := reward.Classify(err); ok {
		status := http.StatusBadRequest
		if kind.Code == reward.Code(reward.ErrLedgerNotFound) {
			status = http.StatusNotFound
		}
		return status, &RPCError{Code: kind.Code, Message: err.Error(), Data: kind.Name}
	}
	switch {
	case errors.Is(err, runtime.ErrDuplicate):
		return http.StatusConflict, &RPCError{Code: codeDuplicateTx, Message: err.Error()}
	case errors.Is(err, token.ErrMintNotFound), errors.Is(err, token.ErrAccountNotFound),
		errors.Is(err, types.ErrAccountNotFound):
		return http.StatusNotFound, &RPCError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, types.ErrUnsigned), errors.Is(err, types.ErrInvalidSignature),
		errors.Is(err, runtime.ErrNilTransaction), errors.Is(err, runtime.ErrUnknownTxType),
		errors.Is(err, crypto.ErrInvalidIdentity):
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, runtime.ErrPayerSignature), errors.Is(err, runtime.ErrCreateUnsigned),
		errors.Is(err, runtime.ErrMissingSignature), errors.Is(err, runtime.ErrForeignDerivation),
		errors.Is(err, token.ErrAuthorityRejected):
		return http.StatusForbidden, &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case isTokenError(err), errors.Is(err, types.ErrAccountExists), errors.Is(err, types.ErrAccountOwner):
		return http.StatusBadRequest, &RPCError{Code: codeRejected, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: err.Error()}
	}
}

func isTokenError(err error) bool {
	for _, target := range []error{
		token.ErrMintExists, token.ErrInvalidMint, token.ErrInvalidAccount,
		token.ErrMintMismatch, token.ErrNoAuthority, token.ErrOverflow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
