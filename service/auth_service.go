package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/ports"
	"go.uber.org/zap"
)

// Scheme is the authentication scheme users are provisioned under.
const Scheme = "siwe"

// emailSuffix is the synthetic mail domain for wallet-derived identities.
const emailSuffix = "@web3.eth"

// Config carries the knobs the service needs. Everything else arrives as an
// explicit dependency.
type Config struct {
	AppURL               string
	Binding              core.Binding
	AllowedDomains       []string // empty allows any relying-party domain
	DefaultTeamSubdomain string

	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// AuthService handles the SIWE authentication flow: challenge issuance,
// verification, the NFT gate, user provisioning and session issuance.
type AuthService struct {
	cfg Config

	tokenizer ports.Tokenizer
	siwe      ports.SiweCodec
	nonces    ports.KeyStore // consumed challenge IDs
	revoked   ports.KeyStore // revoked refresh token IDs
	users     ports.UserStore
	teams     ports.TeamStore
	gate      ports.HoldingsGate
	eventPub  ports.EventPublisher
	logger    *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cfg Config,
	tokenizer ports.Tokenizer,
	siweCodec ports.SiweCodec,
	nonces ports.KeyStore,
	revoked ports.KeyStore,
	users ports.UserStore,
	teams ports.TeamStore,
	gate ports.HoldingsGate,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 5 * 24 * time.Hour
	}

	return &AuthService{
		cfg:       cfg,
		tokenizer: tokenizer,
		siwe:      siweCodec,
		nonces:    nonces,
		revoked:   revoked,
		users:     users,
		teams:     teams,
		gate:      gate,
		eventPub:  eventPub,
		logger:    logger,
	}
}

// IssueChallenge builds a SIWE message for the given parameters and returns
// it wrapped in a signed, short-lived token. The server keeps nothing; the
// token is the only channel carrying the nonce/message binding to the
// verification round trip.
func (s *AuthService) IssueChallenge(params core.ChallengeParams) (string, error) {
	if params.Address == "" || params.Domain == "" || params.URI == "" || params.ChainID == 0 {
		return "", core.ErrMissingParameter
	}

	if !s.domainAllowed(params.Domain) {
		return "", fmt.Errorf("domain %q: %w", params.Domain, core.ErrDomainNotAllowed)
	}

	nonce := s.siwe.Nonce()
	now := time.Now()
	expiresAt := now.Add(s.cfg.ChallengeTTL)

	message, err := s.siwe.BuildMessage(params, nonce, now, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to build challenge message: %w", err)
	}

	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   params.Address,
		Nonce:     nonce,
		Message:   message,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return "", fmt.Errorf("failed to create challenge token: %w", err)
	}

	return token, nil
}

// Login runs the verification half of the flow: challenge token decoding,
// SIWE signature verification, nonce consumption, the holdings gate, user
// provisioning and session issuance. The message argument is required under
// message binding and ignored under address binding.
func (s *AuthService) Login(ctx context.Context, challengeToken, message, signature, host string) (*core.SignInResult, error) {
	challenge, err := s.tokenizer.TokenToChallenge(challengeToken)
	if err != nil {
		return nil, err
	}

	record := challenge.Message
	if s.cfg.Binding == core.BindingMessage {
		if message == "" {
			return nil, fmt.Errorf("message is required: %w", core.ErrMissingParameter)
		}
		if err := s.crossCheck(challenge, message); err != nil {
			return nil, err
		}
		record = message
	}

	fields, err := s.siwe.ParseMessage(record)
	if err != nil {
		return nil, err
	}
	if !s.domainAllowed(fields.Domain) {
		return nil, fmt.Errorf("domain %q: %w", fields.Domain, core.ErrSiweVerification)
	}

	address, err := s.siwe.VerifyMessage(record, signature, challenge.Nonce)
	if err != nil {
		return nil, err
	}

	if err := s.consumeChallenge(ctx, challenge); err != nil {
		return nil, err
	}

	if s.gate.Enabled() {
		holds, err := s.gate.HoldsToken(ctx, address)
		if err != nil {
			// Fail closed: an unreachable indexer is a denial, not a pass.
			return nil, err
		}
		if !holds {
			return nil, core.ErrNFTRequired
		}
	}

	team, err := s.resolveTeam(ctx, host)
	if err != nil {
		return nil, err
	}

	user, isNewUser, err := s.users.FindOrCreate(ctx, &core.User{
		TeamID:  team.ID,
		Email:   strings.ToLower(address) + emailSuffix,
		Name:    address,
		Role:    core.RoleViewer,
		Service: Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	accessToken, refreshToken, err := s.establishSession(address, user)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishSignIn(ctx, address, team.ID, isNewUser); err != nil {
		// The session is already established; a lost event is not worth
		// failing the login over.
		s.logger.Warn("failed to publish sign-in event", zap.Error(err))
	}

	return &core.SignInResult{
		User:         user,
		Team:         team,
		IsNewUser:    isNewUser,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RedirectURL:  strings.TrimSuffix(s.cfg.AppURL, "/") + "/app",
	}, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", err
	}

	if time.Now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	invalidated, err := s.revoked.IsInvalidated(ctx, session.RefreshID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return "", "", core.ErrTokenInvalidated
	}

	// The old refresh token stays dead for the remainder of its lifetime.
	remaining := time.Until(session.RefreshExpiry)
	if err := s.revoked.Invalidate(ctx, session.RefreshID, remaining); err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	now := time.Now()
	newSession := &core.Session{
		ID:            uuid.New().String(),
		Address:       session.Address,
		UserID:        session.UserID,
		TeamID:        session.TeamID,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.cfg.RefreshTTL),
		AccessExpiry:  now.Add(s.cfg.AccessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(newSession)
	if err != nil {
		return "", "", fmt.Errorf("failed to create new access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(newSession)
	if err != nil {
		return "", "", fmt.Errorf("failed to create new refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return err
	}

	// Even an expired token gets an invalidation record, with a floor so
	// slightly skewed clocks cannot resurrect it.
	remaining := time.Until(session.RefreshExpiry)
	if remaining < time.Hour {
		remaining = time.Hour
	}

	if err := s.revoked.Invalidate(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		// The token is already invalidated in the store, which is the part
		// that matters.
		s.logger.Warn("failed to publish logout event", zap.Error(err))
	}

	return nil
}

// ValidateAccessToken parses an access token and checks it against the
// revocation store.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Revoking a refresh token takes its access tokens down with it.
	if session.RefreshID != "" {
		invalidated, err := s.revoked.IsInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// crossCheck ensures a client-resubmitted message agrees with the one sealed
// inside the challenge token.
func (s *AuthService) crossCheck(challenge *core.Challenge, message string) error {
	submitted, err := s.siwe.ParseMessage(message)
	if err != nil {
		return err
	}

	sealed, err := s.siwe.ParseMessage(challenge.Message)
	if err != nil {
		return err
	}

	if submitted.Nonce != sealed.Nonce ||
		!strings.EqualFold(submitted.Address, sealed.Address) ||
		submitted.Domain != sealed.Domain ||
		submitted.ChainID != sealed.ChainID {
		return fmt.Errorf("resubmitted message does not match challenge: %w", core.ErrSiweVerification)
	}

	return nil
}

// consumeChallenge enforces single use of a verified challenge.
func (s *AuthService) consumeChallenge(ctx context.Context, challenge *core.Challenge) error {
	used, err := s.nonces.IsInvalidated(ctx, challenge.ID)
	if err != nil {
		return fmt.Errorf("failed to check challenge consumption: %w", err)
	}
	if used {
		return core.ErrChallengeConsumed
	}

	remaining := time.Until(challenge.ExpiresAt)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	if err := s.nonces.Invalidate(ctx, challenge.ID, remaining); err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}

	return nil
}

func (s *AuthService) establishSession(address string, user *core.User) (string, string, error) {
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		UserID:        user.ID,
		TeamID:        user.TeamID,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.cfg.RefreshTTL),
		AccessExpiry:  now.Add(s.cfg.AccessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// resolveTeam maps the request host to a team: the application apex resolves
// to the default team, anything else by its first label.
func (s *AuthService) resolveTeam(ctx context.Context, host string) (*core.Team, error) {
	subdomain := s.cfg.DefaultTeamSubdomain

	if h := stripPort(host); h != "" && h != s.appHost() {
		if i := strings.Index(h, "."); i > 0 {
			subdomain = h[:i]
		}
	}

	team, err := s.teams.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	return team, nil
}

func (s *AuthService) appHost() string {
	u, err := url.Parse(s.cfg.AppURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (s *AuthService) domainAllowed(domain string) bool {
	if len(s.cfg.AllowedDomains) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// IsAuthFailure reports whether the error belongs to the verification path,
// where the client only ever sees a generic unauthorized response.
func IsAuthFailure(err error) bool {
	return errors.Is(err, core.ErrInvalidToken) ||
		errors.Is(err, core.ErrTokenExpired) ||
		errors.Is(err, core.ErrTokenInvalidated) ||
		errors.Is(err, core.ErrSiweVerification) ||
		errors.Is(err, core.ErrChallengeConsumed) ||
		errors.Is(err, core.ErrNFTRequired) ||
		errors.Is(err, core.ErrGateUnavailable)
}
