package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	siweadapter "github.com/helios-labs/walletgate/adapters/siwe"
	"github.com/helios-labs/walletgate/adapters/store"
	"github.com/helios-labs/walletgate/adapters/tokenizer"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/internal/metrics"
	"github.com/helios-labs/walletgate/ports"
	"github.com/helios-labs/walletgate/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes -----------------------------------------------------------------

type memUsers struct {
	mu    sync.Mutex
	byKey map[string]*core.User
}

func (m *memUsers) FindByEmail(ctx context.Context, teamID, email string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKey[teamID+"|"+email], nil
}

func (m *memUsers) FindOrCreate(ctx context.Context, user *core.User) (*core.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := user.TeamID + "|" + user.Email
	if existing, ok := m.byKey[key]; ok {
		return existing, false, nil
	}
	user.ID = uuid.New().String()
	m.byKey[key] = user
	return user, true, nil
}

type memTeams struct{ teams map[string]*core.Team }

func (m *memTeams) FindBySubdomain(ctx context.Context, subdomain string) (*core.Team, error) {
	team, ok := m.teams[subdomain]
	if !ok {
		return nil, core.ErrTeamNotFound
	}
	return team, nil
}

type stubGate struct {
	enabled bool
	holds   bool
	err     error
}

func (g *stubGate) Enabled() bool { return g.enabled }
func (g *stubGate) HoldsToken(ctx context.Context, address string) (bool, error) {
	return g.holds, g.err
}

type nopEvents struct{}

func (nopEvents) PublishSignIn(ctx context.Context, address, teamID string, isNewUser bool) error {
	return nil
}
func (nopEvents) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return nil
}

// --- harness ---------------------------------------------------------------

type harness struct {
	router *gin.Engine
	tk     ports.Tokenizer
	gate   *stubGate
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tk := tokenizer.NewJWTTokenizer(key)
	gate := &stubGate{}

	svc := service.NewAuthService(
		service.Config{
			AppURL:               "https://app.example.com",
			Binding:              core.BindingAddress,
			DefaultTeamSubdomain: "app",
			ChallengeTTL:         5 * time.Minute,
		},
		tk,
		siweadapter.NewCodec(""),
		store.NewMemoryKeyStore(),
		store.NewMemoryKeyStore(),
		&memUsers{byKey: make(map[string]*core.User)},
		&memTeams{teams: map[string]*core.Team{
			"app": {ID: "team-app", Subdomain: "app", Name: "Default"},
		}},
		gate,
		nopEvents{},
		zap.NewNop(),
	)

	return &harness{
		router: SetupRouter(svc, metrics.New(), zap.NewNop()),
		tk:     tk,
		gate:   gate,
	}
}

func (h *harness) challenge(t *testing.T, address string) string {
	t.Helper()

	query := url.Values{}
	query.Set("walletAddress", address)
	query.Set("domain", "example.com")
	query.Set("uri", "https://example.com/login")
	query.Set("chainId", "1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/siwe/jwt?"+query.Encode(), nil)
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		JWT string `json:"jwt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.JWT)

	return body.JWT
}

func (h *harness) login(t *testing.T, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/siwe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "app.example.com"
	h.router.ServeHTTP(w, req)

	return w
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	return key, ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signPersonal(t *testing.T, message string, key *ecdsa.PrivateKey) string {
	t.Helper()

	hash := accounts.TextHash([]byte(message))
	sig, err := ethcrypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27

	return hexutil.Encode(sig)
}

// --- tests -----------------------------------------------------------------

func TestChallengeRequiresAllParams(t *testing.T) {
	h := newHarness(t)

	cases := []string{
		"/auth/siwe/jwt",
		"/auth/siwe/jwt?walletAddress=0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"/auth/siwe/jwt?walletAddress=0x70997970C51812dc3A010C7d01b50e0d17dc79C8&domain=example.com&uri=https://example.com",
		"/auth/siwe/jwt?walletAddress=0x70997970C51812dc3A010C7d01b50e0d17dc79C8&domain=example.com&uri=https://example.com&chainId=zero",
	}

	for _, path := range cases {
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestChallengeAcceptsAliasParams(t *testing.T) {
	h := newHarness(t)

	// The address/origin spelling of the parameters works too.
	query := url.Values{}
	query.Set("address", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	query.Set("domain", "example.com")
	query.Set("origin", "https://example.com/login")
	query.Set("chainId", "1")

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/siwe/jwt?"+query.Encode(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRedirectsWithSession(t *testing.T) {
	h := newHarness(t)
	key, address := newWallet(t)

	token := h.challenge(t, address)

	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)

	w := h.login(t, map[string]string{
		"jwt":       token,
		"signature": signPersonal(t, challenge.Message, key),
	})

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example.com/app", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
		assert.True(t, c.HttpOnly, "session cookies are http-only")
	}
	assert.True(t, names["accessToken"])
	assert.True(t, names["refreshToken"])
}

func TestLoginMissingFields(t *testing.T) {
	h := newHarness(t)

	w := h.login(t, map[string]string{"signature": "0x00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.login(t, map[string]string{"jwt": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRejectsTamperedToken(t *testing.T) {
	h := newHarness(t)
	key, address := newWallet(t)

	token := h.challenge(t, address)
	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)

	w := h.login(t, map[string]string{
		"jwt":       token + "x",
		"signature": signPersonal(t, challenge.Message, key),
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestLoginRejectsWrongSigner(t *testing.T) {
	h := newHarness(t)
	_, address := newWallet(t)
	otherKey, _ := newWallet(t)

	token := h.challenge(t, address)
	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)

	w := h.login(t, map[string]string{
		"jwt":       token,
		"signature": signPersonal(t, challenge.Message, otherKey),
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestLoginGateDenialIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.gate.enabled = true
	h.gate.holds = false

	key, address := newWallet(t)
	token := h.challenge(t, address)
	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)

	w := h.login(t, map[string]string{
		"jwt":       token,
		"signature": signPersonal(t, challenge.Message, key),
	})

	// Semantically forbidden, but the wire response is the same generic 401.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestLoginReplayRejected(t *testing.T) {
	h := newHarness(t)
	key, address := newWallet(t)

	token := h.challenge(t, address)
	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)
	signature := signPersonal(t, challenge.Message, key)

	w := h.login(t, map[string]string{"jwt": token, "signature": signature})
	require.Equal(t, http.StatusFound, w.Code)

	w = h.login(t, map[string]string{"jwt": token, "signature": signature})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutes(t *testing.T) {
	h := newHarness(t)
	key, address := newWallet(t)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Authenticate and pull the access token off the redirect cookies.
	token := h.challenge(t, address)
	challenge, err := h.tk.TokenToChallenge(token)
	require.NoError(t, err)

	loginResp := h.login(t, map[string]string{
		"jwt":       token,
		"signature": signPersonal(t, challenge.Message, key),
	})
	require.Equal(t, http.StatusFound, loginResp.Code)

	var accessToken string
	for _, c := range loginResp.Result().Cookies() {
		if c.Name == "accessToken" {
			accessToken = c.Value
		}
	}
	require.NotEmpty(t, accessToken)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), address)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
