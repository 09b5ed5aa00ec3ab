package lightspeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTokenDuration is used when the API doesn't return an expiry time.
const defaultTokenDuration = 60 * time.Minute

// RefreshTokens exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.requestTokens(ctx, data)
}

// ExchangeCode exchanges an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string, redirectURI string) (*TokenPair, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)

	return c.requestTokens(ctx, data)
}

// requestTokens posts a grant request to the token endpoint and returns
// the resulting token pair with a computed expiry.
func (c *Client) requestTokens(ctx context.Context, data url.Values) (*TokenPair, error) {
	data.Set("client_id", c.config.ClientID)
	data.Set("client_secret", c.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token")
	}

	expiresAt := time.Now().Add(defaultTokenDuration)
	if tokenResp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &TokenPair{
		AccessToken:  tokenResp.AccessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}
