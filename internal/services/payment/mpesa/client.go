// Package mpesa is a Daraja API client for STK push deposits and B2C payouts.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stakeoption/internal/config"
	appErrors "stakeoption/internal/errors"
	"stakeoption/internal/logger"

	"go.uber.org/zap"
)

const (
	tokenCacheKey = "mpesa:oauth_token"
	// Daraja tokens live 3599s; refresh a little earlier.
	tokenTTL = 3500 * time.Second

	timestampLayout = "20060102150405"
)

// TokenCache shares the OAuth token between instances.
type TokenCache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

type Client struct {
	cfg        config.Mpesa
	baseURL    string
	httpClient *http.Client
	tokens     TokenCache
	log        *zap.Logger
	now        func() time.Time
}

func NewClient(cfg config.Mpesa, tokens TokenCache, log *zap.Logger) *Client {
	if tokens == nil {
		panic("token cache is required")
	}
	return &Client{
		cfg:        cfg,
		baseURL:    cfg.BaseURL(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		log:        logger.OrNop(log).Named("mpesa"),
		now:        time.Now,
	}
}

// Password returns the STK password and the timestamp it was derived from.
func Password(shortCode, passkey string, at time.Time) (string, string) {
	ts := at.Format(timestampLayout)
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + ts)), ts
}

// Token returns the cached bearer token or fetches a new one.
func (c *Client) Token(ctx context.Context) (string, error) {
	if tok, ok, err := c.tokens.GetString(ctx, tokenCacheKey); err == nil && ok && tok != "" {
		return tok, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrMpesaAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Error("oauth request rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return "", appErrors.ErrMpesaAuthFailed
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.AccessToken == "" {
		return "", appErrors.ErrMpesaAuthFailed
	}

	if err := c.tokens.SetString(ctx, tokenCacheKey, res.AccessToken, tokenTTL); err != nil {
		c.log.Warn("failed to cache oauth token", zap.Error(err))
	}
	return res.AccessToken, nil
}

// post sends an authenticated JSON request and decodes the JSON reply into out.
// Daraja reports business failures in the body, so non-2xx replies are decoded too.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) callbackURL(path string) string {
	return c.cfg.CallbackBaseURL + path
}
