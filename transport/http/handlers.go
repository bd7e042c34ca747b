package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/internal/metrics"
	"github.com/helios-labs/walletgate/service"
	"go.uber.org/zap"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, m *metrics.Metrics, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		metrics:     m,
		logger:      logger,
	}
}

// Challenge handles GET /auth/siwe/jwt. All four parameters are required;
// the check happens before any crypto work.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	address := firstQuery(c, "walletAddress", "address")
	domain := c.Query("domain")
	uri := firstQuery(c, "uri", "origin")
	chainIDStr := c.Query("chainId")

	if address == "" || domain == "" || uri == "" || chainIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "walletAddress, domain, uri and chainId are required"})
		return
	}

	chainID, err := strconv.Atoi(chainIDStr)
	if err != nil || chainID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chainId must be a positive integer"})
		return
	}

	token, err := h.authService.IssueChallenge(core.ChallengeParams{
		Address: address,
		Domain:  domain,
		URI:     uri,
		ChainID: chainID,
	})
	if err != nil {
		if errors.Is(err, core.ErrMissingParameter) || errors.Is(err, core.ErrDomainNotAllowed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		h.logger.Error("challenge issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	h.metrics.ChallengesIssued.Inc()

	c.JSON(http.StatusOK, gin.H{"jwt": token})
}

// Login handles POST /auth/siwe. On success the session tokens are set as
// cookies and the caller is redirected into the application.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		JWT       string `json:"jwt" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jwt and signature are required"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.JWT, req.Message, req.Signature, c.Request.Host)
	if err != nil {
		h.rejectLogin(c, err)
		return
	}

	h.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	h.logger.Info("wallet authenticated",
		zap.String("address", result.User.Name),
		zap.String("team", result.Team.ID),
		zap.Bool("new_user", result.IsNewUser))

	setSessionCookies(c, result.AccessToken, result.RefreshToken)
	c.Redirect(http.StatusFound, result.RedirectURL)
}

// rejectLogin maps a failed attempt onto the wire. Every verification-path
// failure collapses to the same generic 401; only the log line and the
// metric label say why.
func (h *AuthHandlers) rejectLogin(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrMissingParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	case errors.Is(err, core.ErrTeamNotFound):
		h.metrics.Logins.WithLabelValues(metrics.OutcomeServerError).Inc()
		h.logger.Error("login failed: no team for request host",
			zap.String("host", c.Request.Host))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	case service.IsAuthFailure(err):
		h.metrics.Logins.WithLabelValues(loginOutcome(err)).Inc()
		h.logger.Info("login rejected", zap.Error(err))
	default:
		h.metrics.Logins.WithLabelValues(metrics.OutcomeServerError).Inc()
		h.logger.Error("login failed", zap.Error(err))
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	accessToken, refreshToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		case errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		case errors.Is(err, core.ErrTokenInvalidated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token has been invalidated"})
		default:
			h.logger.Error("refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh tokens"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
	})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			// Expired tokens still count as logged out.
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
			return
		default:
			h.logger.Error("logout failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": session.Address,
		"user_id": session.UserID,
		"team_id": session.TeamID,
	})
}

// Authorize reports that the bearer token passed the middleware.
func (h *AuthHandlers) Authorize(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    session.Address,
	})
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrChallengeConsumed):
		return metrics.OutcomeReplayed
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenExpired):
		return metrics.OutcomeTokenInvalid
	case errors.Is(err, core.ErrSiweVerification):
		return metrics.OutcomeSiweFailed
	case errors.Is(err, core.ErrNFTRequired), errors.Is(err, core.ErrGateUnavailable):
		return metrics.OutcomeGateDenied
	default:
		return metrics.OutcomeServerError
	}
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v := c.Query(key); v != "" {
			return v
		}
	}
	return ""
}

func setSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	// Session cookies; lifetimes are enforced by the tokens themselves.
	c.SetCookie("accessToken", accessToken, 0, "/", "", false, true)
	c.SetCookie("refreshToken", refreshToken, 0, "/", "", false, true)
}
