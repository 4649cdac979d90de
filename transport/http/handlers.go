package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/internal/fingerprint"
	"github.com/questfall/walletgate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService  *service.AuthService
	tokenService *service.TokenService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, tokenService *service.TokenService) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		tokenService: tokenService,
	}
}

// Connect issues a challenge for a wallet address
func (h *AuthHandlers) Connect(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.IssueChallenge(c.Request.Context(), req.Address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge": result.Message,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	})
}

// Authenticate verifies a signed challenge and logs the wallet in
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req struct {
		Address           string `json:"address" binding:"required"`
		Message           string `json:"message" binding:"required"`
		Signature         string `json:"signature" binding:"required"`
		Email             string `json:"email"`
		DeviceFingerprint string `json:"deviceFingerprint"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Body value wins; otherwise header or the derived fallback.
	fp := req.DeviceFingerprint
	if fp == "" {
		fp = fingerprint.FromRequest(c.Request)
	}

	result, err := h.authService.Authenticate(c.Request.Context(), service.AuthenticateInput{
		Address:     req.Address,
		Message:     req.Message,
		Signature:   req.Signature,
		Email:       req.Email,
		Fingerprint: fp,
		IPAddress:   fingerprint.ClientIP(c.Request),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		status, msg := mapAuthError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         result.User,
		"isNewUser":    result.IsNewUser,
	})
}

// Refresh rotates a refresh token
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	pair, err := h.tokenService.RefreshTokens(c.Request.Context(), req.RefreshToken, service.RefreshContext{
		Fingerprint: fingerprint.FromRequest(c.Request),
		IPAddress:   fingerprint.ClientIP(c.Request),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrRefreshTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		case errors.Is(err, core.ErrRefreshTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh tokens"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Logout revokes a refresh token
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil && !errors.Is(err, core.ErrRefreshTokenInvalid) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	// An unknown token still logs out successfully; there is nothing
	// left to revoke.
	c.Status(http.StatusOK)
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, exists := c.Get(contextClaimsKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}
	accessClaims := claims.(*service.AccessClaims)

	c.JSON(http.StatusOK, gin.H{
		"userId":  accessClaims.Subject,
		"address": accessClaims.Wallet,
		"role":    accessClaims.Role,
	})
}

// Authorize checks if a user is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	claims, exists := c.Get(contextClaimsKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}
	accessClaims := claims.(*service.AccessClaims)

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    accessClaims.Wallet,
	})
}

func mapAuthError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid wallet address"
	case errors.Is(err, core.ErrInvalidChallenge):
		return http.StatusBadRequest, "Invalid challenge message"
	case errors.Is(err, core.ErrChallengeExpired):
		return http.StatusBadRequest, "Challenge expired"
	case errors.Is(err, core.ErrChallengeConsumed):
		return http.StatusBadRequest, "Challenge already used"
	case errors.Is(err, core.ErrSignatureInvalid):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrDevicePairingConflict):
		return http.StatusForbidden, "This device is already linked to a different wallet"
	default:
		return http.StatusInternalServerError, "Authentication failed"
	}
}
