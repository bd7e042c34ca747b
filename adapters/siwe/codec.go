// Package siwe wraps the spruceid siwe-go library behind the SiweCodec port.
package siwe

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/ports"
	siwe "github.com/spruceid/siwe-go"
)

// timestampLayout matches the ISO-8601 form siwe-go emits for issued-at and
// expiration fields.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Codec implements ports.SiweCodec on top of spruceid/siwe-go.
type Codec struct {
	statement string // optional human-readable statement baked into every message
}

// NewCodec creates a SIWE codec. The statement may be empty.
func NewCodec(statement string) *Codec {
	return &Codec{statement: statement}
}

var _ ports.SiweCodec = (*Codec)(nil)

// Nonce returns a fresh random nonce.
func (c *Codec) Nonce() string {
	return siwe.GenerateNonce()
}

// BuildMessage renders the canonical SIWE message text for the challenge
// parameters. The address is normalized to its EIP-55 checksummed form
// before it goes into the message.
func (c *Codec) BuildMessage(params core.ChallengeParams, nonce string, issuedAt, expiresAt time.Time) (string, error) {
	options := map[string]interface{}{
		"chainId":        params.ChainID,
		"issuedAt":       issuedAt.UTC().Format(timestampLayout),
		"expirationTime": expiresAt.UTC().Format(timestampLayout),
	}
	if c.statement != "" {
		options["statement"] = c.statement
	}

	address := common.HexToAddress(params.Address).Hex()

	msg, err := siwe.InitMessage(params.Domain, address, params.URI, nonce, options)
	if err != nil {
		return "", fmt.Errorf("failed to build siwe message: %w", err)
	}

	return msg.String(), nil
}

// ParseMessage extracts the verification-relevant fields without verifying
// any signature.
func (c *Codec) ParseMessage(message string) (*ports.SiweFields, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("malformed siwe message: %w", core.ErrSiweVerification)
	}

	uri := msg.GetURI()

	return &ports.SiweFields{
		Address: msg.GetAddress().Hex(),
		Nonce:   msg.GetNonce(),
		Domain:  msg.GetDomain(),
		URI:     uri.String(),
		ChainID: msg.GetChainID(),
	}, nil
}

// VerifyMessage re-parses the message and runs the library's full
// verification: nonce match, validity window, EIP-191 signature recovery and
// signer-matches-message-address. All failures wrap core.ErrSiweVerification;
// the cause stays available to errors.As via FailureKind.
func (c *Codec) VerifyMessage(message, signature, nonce string) (string, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return "", fmt.Errorf("malformed siwe message: %w", core.ErrSiweVerification)
	}

	if _, err := msg.Verify(signature, nil, &nonce, nil); err != nil {
		return "", fmt.Errorf("%s: %w", FailureKind(err), core.ErrSiweVerification)
	}

	return msg.GetAddress().Hex(), nil
}

// FailureKind discriminates the siwe-go error kinds for logging. The client
// never sees these; the endpoint boundary collapses everything to a generic
// 401.
func FailureKind(err error) string {
	var expired *siwe.ExpiredMessage
	var invalidMsg *siwe.InvalidMessage
	var invalidSig *siwe.InvalidSignature

	switch {
	case errors.As(err, &expired):
		return "message expired"
	case errors.As(err, &invalidSig):
		return "invalid signature"
	case errors.As(err, &invalidMsg):
		return "invalid message"
	default:
		return "verification error"
	}
}
