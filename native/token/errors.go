package token

import "errors"

var (
	ErrMintExists        = errors.New("token: mint already exists")
	ErrMintNotFound      = errors.New("token: mint not found")
	ErrInvalidMint       = errors.New("token: account is not a mint")
	ErrAccountNotFound   = errors.New("token: account not found")
	ErrInvalidAccount    = errors.New("token: account is not a token account")
	ErrMintMismatch      = errors.New("token: account belongs to another mint")
	ErrAuthorityRejected = errors.New("token: mint authority rejected")
	ErrNoAuthority       = errors.New("token: mint authority must be set")
	ErrOverflow          = errors.New("token: amount overflow")
)
