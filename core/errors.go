package core

import "errors"

var (
	// ErrMissingParameter is returned when a required input is absent.
	// It is checked before any crypto or network work happens.
	ErrMissingParameter = errors.New("missing required parameter")

	ErrDomainNotAllowed = errors.New("domain is not an allowed relying party")

	// ErrInvalidToken covers challenge tokens that fail decoding or
	// signature verification.
	ErrInvalidToken = errors.New("invalid token")

	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")

	// ErrSiweVerification covers every SIWE-level failure: malformed or
	// expired message, nonce mismatch, signature that does not recover the
	// claimed address.
	ErrSiweVerification = errors.New("siwe verification failed")

	// ErrChallengeConsumed is returned when a challenge is presented a
	// second time. Nonces are single use.
	ErrChallengeConsumed = errors.New("challenge has already been used")

	// ErrNFTRequired is returned when the configured gate contract reports
	// zero holdings for the authenticated address.
	ErrNFTRequired = errors.New("address does not hold the required NFT")

	// ErrGateUnavailable is returned when the ownership lookup itself
	// failed. The gate fails closed, so callers treat this like a denial.
	ErrGateUnavailable = errors.New("nft ownership check failed")

	// ErrTeamNotFound is returned when no team can be resolved from the
	// request context. This is a server-side failure, not an auth failure.
	ErrTeamNotFound = errors.New("no team found in request context")
)
