package ports

import "context"

// HoldingsGate answers whether an address may proceed past the authorization
// gate. Implementations must fail closed: a lookup failure is an error, never
// a pass.
type HoldingsGate interface {
	// Enabled reports whether a gate contract is configured at all. When
	// false the gate is an explicit no-op.
	Enabled() bool

	// HoldsToken reports whether the address owns at least one token of the
	// configured contract.
	HoldsToken(ctx context.Context, address string) (bool, error)
}
