package ports

import (
	"time"

	"github.com/helios-labs/walletgate/core"
)

// SiweFields are the verification-relevant fields of a parsed SIWE message.
type SiweFields struct {
	Address string // checksummed
	Nonce   string
	Domain  string
	URI     string
	ChainID int
}

// SiweCodec builds and verifies Sign-In with Ethereum messages.
type SiweCodec interface {
	// Nonce returns a fresh unpredictable nonce.
	Nonce() string

	// BuildMessage renders the canonical SIWE message for the given
	// parameters and nonce.
	BuildMessage(params core.ChallengeParams, nonce string, issuedAt, expiresAt time.Time) (string, error)

	// ParseMessage extracts the verification-relevant fields from a raw
	// SIWE message without checking any signature. A malformed message
	// yields an error wrapping core.ErrSiweVerification.
	ParseMessage(message string) (*SiweFields, error)

	// VerifyMessage checks the signature against the message and nonce and
	// returns the checksummed address that produced it. Every SIWE-level
	// failure (malformed or expired message, nonce mismatch, bad signature)
	// wraps core.ErrSiweVerification.
	VerifyMessage(message, signature, nonce string) (string, error)
}
