package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/amaumene/traktsync/internal/config"
	"github.com/amaumene/traktsync/internal/models"
)

const (
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
	// maxRetryElapsed bounds how long a single call may keep retrying
	maxRetryElapsed = 30 * time.Second
)

// APIError is returned when Trakt answers with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether the request may succeed when repeated
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client handles communication with Trakt API
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	tokenStore   TokenStore
	httpClient   *http.Client
	logger       *logrus.Logger
	maxElapsed   time.Duration
	refreshes    singleflight.Group
}

// NewClient creates a new Trakt API client
func NewClient(cfg *config.Config, tokenStore TokenStore, logger *logrus.Logger) (*Client, error) {
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}

	baseURL := strings.TrimRight(cfg.TraktAPIURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:      baseURL,
		clientID:     cfg.TraktClientID,
		clientSecret: cfg.TraktClientSecret,
		tokenStore:   tokenStore,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		maxElapsed:   maxRetryElapsed,
	}, nil
}

// doRequest performs an authenticated HTTP request to Trakt API on behalf of an account.
// GETs are retried with exponential backoff on network errors, 429 and 5xx.
// Writes may already have been applied when those fail, so they only retry on 429.
func (c *Client) doRequest(ctx context.Context, account models.LinkedAccount, method, path string, body interface{}, result interface{}) error {
	// Check and refresh token if needed
	if err := c.ensureValidToken(ctx, account); err != nil {
		return fmt.Errorf("failed to ensure valid token: %w", err)
	}

	var payload []byte
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonData
	}

	var accessToken string
	if token, err := c.tokenStore.GetToken(account.ID); err == nil && token != nil {
		accessToken = token.AccessToken
	}

	fullURL := c.baseURL + path
	operation := func() error {
		err := c.send(ctx, method, fullURL, payload, accessToken, result)
		if err == nil || method == http.MethodGet {
			return err
		}
		return onlyRateLimitRetryable(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed
	notify := func(err error, wait time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method":  method,
			"url":     fullURL,
			"account": account.ID,
			"wait":    wait,
		}).Warn("Trakt API request failed, retrying")
	}

	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}

// onlyRateLimitRetryable marks every error except a 429 as permanent
func onlyRateLimitRetryable(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}

// send performs a single attempt; errors that cannot succeed on retry are marked permanent
func (c *Client) send(ctx context.Context, method, fullURL string, payload []byte, accessToken string, result interface{}) error {
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making Trakt API request")

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		if apiErr.retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	// Parse response
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}
