package trakt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/amaumene/traktsync/internal/models"
)

// refreshWindow is how long before expiry a token gets refreshed
const refreshWindow = 24 * time.Hour

// TokenStore defines the interface for storing and retrieving per-account tokens
type TokenStore interface {
	GetToken(accountID string) (*models.Token, error)
	SaveToken(accountID string, token *models.Token) error
}

// TokenResponse represents the response from token request
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	CreatedAt    int64  `json:"created_at"`
}

// ensureValidToken checks if the account token is valid and refreshes it if needed.
// Refresh tokens are single-use, so concurrent callers for one account share a single refresh.
func (c *Client) ensureValidToken(ctx context.Context, account models.LinkedAccount) error {
	token, err := c.tokenStore.GetToken(account.ID)
	if errors.Is(err, models.ErrNotFound) {
		c.logger.WithField("account", account.ID).Debug("No token stored, sending unauthenticated request")
		return nil
	}
	if err != nil {
		return err
	}
	if !needsRefresh(token) {
		return nil
	}

	_, err, _ = c.refreshes.Do(account.ID, func() (interface{}, error) {
		// another caller may have refreshed since the first read
		current, err := c.tokenStore.GetToken(account.ID)
		if err != nil {
			return nil, err
		}
		if !needsRefresh(current) {
			return nil, nil
		}
		c.logger.WithField("account", account.ID).Info("Token expires soon, refreshing...")
		return nil, c.RefreshToken(ctx, account.ID, current)
	})
	return err
}

func needsRefresh(token *models.Token) bool {
	return token.RefreshToken != "" && time.Until(token.ExpiresAt) < refreshWindow
}

// RefreshToken refreshes the access token of an account using its refresh token
func (c *Client) RefreshToken(ctx context.Context, accountID string, token *models.Token) error {
	refreshReq := map[string]string{
		"refresh_token": token.RefreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}

	payload, err := json.Marshal(refreshReq)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	var tokenResp TokenResponse
	operation := func() error {
		return c.send(ctx, "POST", c.baseURL+"/oauth/token", payload, "", &tokenResp)
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	newToken := &models.Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	if err := c.tokenStore.SaveToken(accountID, newToken); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	c.logger.WithField("account", accountID).Info("Token refreshed successfully")
	return nil
}
