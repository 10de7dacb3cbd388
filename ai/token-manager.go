package ai

import (
	"Kotofey/core"
	"Kotofey/lib/sl"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// a token is treated as expired this long before its real expiry
	tokenSafetyMargin = 5 * time.Minute
	// used when the backend does not report an expiry
	tokenFallbackTTL = 30 * time.Minute
	// the background loop renews on this cadence regardless of expiry
	tokenRefreshInterval = 25 * time.Minute

	acquireTimeout = 30 * time.Second
)

// TokenManager owns the bearer token for the completion backend. The pair
// {token, expiresAt} only changes under mu, so the lazy path in Token and
// the background loop can never leave a half-written credential behind.
type TokenManager struct {
	authURL string
	authKey string
	scope   string
	log     *slog.Logger
	client  *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func NewTokenManager(conf *core.Config, log *slog.Logger) *TokenManager {
	transport := &http.Transport{}
	if conf.GigaChat.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled for the token endpoint")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &TokenManager{
		authURL: conf.GigaChat.AuthURL,
		authKey: conf.GigaChat.AuthKey,
		scope:   conf.GigaChat.Scope,
		log:     log.With(sl.Module("token-manager")),
		client: &http.Client{
			Timeout:   acquireTimeout,
			Transport: transport,
		},
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Token returns the cached token while it is fresh and acquires a new one
// otherwise, blocking the caller for the duration of the exchange. Holding
// mu across the exchange doubles as single-flight: concurrent callers
// cannot start duplicate acquisitions.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && tm.now().Before(tm.expiresAt.Add(-tokenSafetyMargin)) {
		return tm.token, nil
	}
	if err := tm.acquire(ctx); err != nil {
		return "", err
	}
	return tm.token, nil
}

// Refresh forces a new acquisition. A failure leaves the previous pair
// untouched, so a still-valid token survives a failed renewal.
func (tm *TokenManager) Refresh(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.acquire(ctx)
}

// acquire exchanges the long-lived authorization key for a bearer token.
// Caller must hold mu.
func (tm *TokenManager) acquire(ctx context.Context) error {
	form := url.Values{}
	form.Set("scope", tm.scope)

	req, err := http.NewRequestWithContext(ctx, "POST", tm.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &core.AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", tm.authKey))

	resp, err := tm.client.Do(req)
	if err != nil {
		return &core.AuthError{Err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			tm.log.Warn("closing response body", sl.Err(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &core.AuthError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.AuthError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return &core.AuthError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if token.AccessToken == "" {
		return &core.AuthError{Err: fmt.Errorf("response has no access_token")}
	}

	expiresAt := tm.now().Add(tokenFallbackTTL)
	if token.ExpiresAt > 0 {
		expiresAt = time.Unix(token.ExpiresAt, 0)
	}

	// the pair changes together, never one half at a time
	tm.token = token.AccessToken
	tm.expiresAt = expiresAt

	tm.log.With(
		sl.Secret(tm.token),
		slog.Time("expires_at", expiresAt),
	).Info("token acquired")
	return nil
}

// StartBackgroundRefresh renews the token on a fixed timer so requests
// rarely hit the lazy path. A failed attempt is logged and the loop keeps
// going; the still-cached token stays valid until its own expiry.
func (tm *TokenManager) StartBackgroundRefresh() {
	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		ticker := time.NewTicker(tokenRefreshInterval)
		defer ticker.Stop()

		tm.log.Info("background token refresh started", slog.Duration("interval", tokenRefreshInterval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
				if err := tm.Refresh(ctx); err != nil {
					tm.log.Error("refreshing token", sl.Err(err))
				}
				cancel()
			case <-tm.stopChan:
				tm.log.Info("background token refresh stopped")
				return
			}
		}
	}()
}

// Stop terminates the background refresh loop and waits for it to exit.
func (tm *TokenManager) Stop() {
	close(tm.stopChan)
	tm.wg.Wait()
}
