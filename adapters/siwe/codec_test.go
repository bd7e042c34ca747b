package siwe

import (
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/helios-labs/walletgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// signPersonal produces an EIP-191 personal_sign signature the way a wallet
// would.
func signPersonal(t *testing.T, message string, key *ecdsa.PrivateKey) string {
	t.Helper()

	hash := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27

	return hexutil.Encode(sig)
}

func testParams(address string) core.ChallengeParams {
	return core.ChallengeParams{
		Address: address,
		Domain:  "example.com",
		URI:     "https://example.com/login",
		ChainID: 1,
	}
}

func TestBuildMessageEmbedsFields(t *testing.T) {
	codec := NewCodec("Sign in to Example")
	_, address := newWallet(t)

	nonce := codec.Nonce()
	now := time.Now()

	message, err := codec.BuildMessage(testParams(address), nonce, now, now.Add(5*time.Minute))
	require.NoError(t, err)

	fields, err := codec.ParseMessage(message)
	require.NoError(t, err)

	assert.Equal(t, address, fields.Address)
	assert.Equal(t, nonce, fields.Nonce)
	assert.Equal(t, "example.com", fields.Domain)
	assert.Equal(t, "https://example.com/login", fields.URI)
	assert.Equal(t, 1, fields.ChainID)
	assert.Contains(t, message, "Sign in to Example")
}

func TestNonceIsFresh(t *testing.T) {
	codec := NewCodec("")

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		nonce := codec.Nonce()
		require.NotEmpty(t, nonce)
		require.False(t, seen[nonce], "nonce repeated")
		seen[nonce] = true
	}
}

func TestVerifyMessage(t *testing.T) {
	codec := NewCodec("")
	key, address := newWallet(t)

	nonce := codec.Nonce()
	now := time.Now()
	message, err := codec.BuildMessage(testParams(address), nonce, now, now.Add(5*time.Minute))
	require.NoError(t, err)

	signature := signPersonal(t, message, key)

	recovered, err := codec.VerifyMessage(message, signature, nonce)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)
}

func TestVerifyMessageWrongSigner(t *testing.T) {
	codec := NewCodec("")
	_, address := newWallet(t)
	otherKey, _ := newWallet(t)

	nonce := codec.Nonce()
	now := time.Now()
	message, err := codec.BuildMessage(testParams(address), nonce, now, now.Add(5*time.Minute))
	require.NoError(t, err)

	// Signed by a different wallet than the message claims.
	signature := signPersonal(t, message, otherKey)

	_, err = codec.VerifyMessage(message, signature, nonce)
	assert.ErrorIs(t, err, core.ErrSiweVerification)
}

func TestVerifyMessageWrongNonce(t *testing.T) {
	codec := NewCodec("")
	key, address := newWallet(t)

	nonce := codec.Nonce()
	now := time.Now()
	message, err := codec.BuildMessage(testParams(address), nonce, now, now.Add(5*time.Minute))
	require.NoError(t, err)

	signature := signPersonal(t, message, key)

	_, err = codec.VerifyMessage(message, signature, codec.Nonce())
	assert.ErrorIs(t, err, core.ErrSiweVerification)
}

func TestVerifyMessageExpired(t *testing.T) {
	codec := NewCodec("")
	key, address := newWallet(t)

	nonce := codec.Nonce()
	issuedAt := time.Now().Add(-10 * time.Minute)
	message, err := codec.BuildMessage(testParams(address), nonce, issuedAt, issuedAt.Add(time.Minute))
	require.NoError(t, err)

	signature := signPersonal(t, message, key)

	_, err = codec.VerifyMessage(message, signature, nonce)
	assert.ErrorIs(t, err, core.ErrSiweVerification)
}

func TestVerifyMessageTamperedText(t *testing.T) {
	codec := NewCodec("")
	key, address := newWallet(t)

	nonce := codec.Nonce()
	now := time.Now()
	message, err := codec.BuildMessage(testParams(address), nonce, now, now.Add(5*time.Minute))
	require.NoError(t, err)

	signature := signPersonal(t, message, key)

	// Redirect the URI after signing.
	tampered := strings.Replace(message, "https://example.com/login", "https://evil.example/login", 1)

	_, err = codec.VerifyMessage(tampered, signature, nonce)
	assert.ErrorIs(t, err, core.ErrSiweVerification)
}

func TestParseMessageMalformed(t *testing.T) {
	codec := NewCodec("")

	_, err := codec.ParseMessage("not a siwe message")
	assert.ErrorIs(t, err, core.ErrSiweVerification)

	_, err = codec.VerifyMessage("not a siwe message", "0x00", "nonce")
	assert.ErrorIs(t, err, core.ErrSiweVerification)
}
