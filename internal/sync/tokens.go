package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
)

// tokenExpiryBuffer is the time before expiry to trigger a refresh.
const tokenExpiryBuffer = 5 * time.Minute

// TokenRefresher exchanges a refresh token for a fresh token pair.
type TokenRefresher interface {
	// RefreshTokens exchanges a refresh token for a fresh token pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*lightspeed.TokenPair, error)
}

// TokenManager guarantees a valid access token is available before any
// API call, refreshing and persisting as needed.
type TokenManager struct {
	// connections persists the token pair on the user's connection.
	connections ConnectionStore

	// logger is the structured logger.
	logger *slog.Logger

	// refresher performs the OAuth refresh exchange.
	refresher TokenRefresher
}

// EnsureValidToken returns a valid access token and the connected account
// ID for the user, refreshing the token pair first when the cached token
// is within the expiry buffer. Every refresh durably updates the stored
// connection. A failed refresh propagates to the caller; there is no
// fallback to a possibly stale token.
func (tm *TokenManager) EnsureValidToken(ctx context.Context, userID string) (string, string, error) {
	conn, err := tm.connections.Connection(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("loading connection: %w", err)
	}
	if conn == nil {
		return "", "", ErrNotConnected
	}

	if conn.AccessToken != "" && time.Now().Before(conn.ExpiresAt.Add(-tokenExpiryBuffer)) {
		return conn.AccessToken, conn.AccountID, nil
	}

	token, err := tm.refresh(ctx, conn)
	if err != nil {
		return "", "", err
	}
	return token, conn.AccountID, nil
}

// ForceRefresh refreshes the token pair regardless of the cached expiry.
// Used when the API rejects a token the expiry said was still valid.
func (tm *TokenManager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	conn, err := tm.connections.Connection(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading connection: %w", err)
	}
	if conn == nil {
		return "", ErrNotConnected
	}

	return tm.refresh(ctx, conn)
}

// refresh exchanges the stored refresh token and persists the new pair.
func (tm *TokenManager) refresh(ctx context.Context, conn *storage.Connection) (string, error) {
	pair, err := tm.refresher.RefreshTokens(ctx, conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}

	// Some token endpoints omit the refresh token when it is unchanged.
	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	if err := tm.connections.UpdateTokens(ctx, conn.UserID, pair.AccessToken, refreshToken, pair.ExpiresAt); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	tm.logger.Info("refreshed access token",
		"user_id", conn.UserID,
		"expires_at", pair.ExpiresAt)

	return pair.AccessToken, nil
}

// NewTokenManager creates a new token manager.
func NewTokenManager(refresher TokenRefresher, connections ConnectionStore, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenManager{
		connections: connections,
		logger:      logger,
		refresher:   refresher,
	}
}
