// Package identity wraps the external identity provider (GoTrue-compatible
// REST API). The provider holds the only durable record of principals; this
// package never caches identities or sessions.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kdsops/internal/config"
	"kdsops/pkg/contracts/domain"
)

// User is a provider identity. The id is provider-assigned and immutable;
// metadata may be amended without changing it.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// Metadata accessors; missing keys return "".
func (u *User) MetaString(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	if v, ok := u.UserMetadata[key].(string); ok {
		return v
	}
	return ""
}

// Role returns the user_type metadata value.
func (u *User) Role() string { return u.MetaString(domain.UserTypeKey) }

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

// Provider holds immutable connection parameters for the identity provider.
//
// A provider handle that has performed a sign-in carries that user's auth
// context in its internal state, so handles must never outlive a single
// external call. Every method below constructs a function-local scoped call
// value and discards it on return; nothing request-scoped is ever stored on
// Provider. This is the structural guard against cross-request session
// confusion.
type Provider struct {
	baseURL    string
	anonKey    string
	serviceKey string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewProvider creates a provider facade from configuration
func NewProvider(cfg config.IdentityConfig, logger *slog.Logger) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		timeout:    cfg.Timeout,
		logger:     logger.With(slog.String("component", "identity")),
	}
}

// scopedCall is a single-use client bound to one key for one external call.
type scopedCall struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	bearer     string
}

// adminCall returns a fresh service-role scoped call
func (p *Provider) adminCall() *scopedCall {
	return &scopedCall{
		httpClient: &http.Client{Timeout: p.timeout},
		baseURL:    p.baseURL,
		apiKey:     p.serviceKey,
		bearer:     p.serviceKey,
	}
}

// anonCall returns a fresh anon-key scoped call for user-facing auth
// operations; the service role key must not be used for these.
func (p *Provider) anonCall() *scopedCall {
	return &scopedCall{
		httpClient: &http.Client{Timeout: p.timeout},
		baseURL:    p.baseURL,
		apiKey:     p.anonKey,
		bearer:     p.anonKey,
	}
}

// userCall returns a fresh call authorized as the presented token's user
func (p *Provider) userCall(accessToken string) *scopedCall {
	return &scopedCall{
		httpClient: &http.Client{Timeout: p.timeout},
		baseURL:    p.baseURL,
		apiKey:     p.anonKey,
		bearer:     accessToken,
	}
}

func (sc *scopedCall) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, sc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("apikey", sc.apiKey)
	req.Header.Set("Authorization", "Bearer "+sc.bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("identity: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return translateError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("identity: decode response: %w", err)
		}
	}
	return nil
}

// CreateUser provisions an identity with confirmed email and the given
// metadata. Returns created=false without error when the email is already
// registered; provisioning is idempotent by email.
func (p *Provider) CreateUser(ctx context.Context, email, password string, metadata map[string]interface{}) (user *User, created bool, err error) {
	payload := map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	}

	var u User
	err = p.adminCall().do(ctx, http.MethodPost, "/admin/users", payload, &u)
	if errors.Is(err, ErrDuplicateEmail) {
		p.logger.InfoContext(ctx, "identity already exists, reusing",
			slog.String("email", email))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	p.logger.InfoContext(ctx, "identity created",
		slog.String("email", email),
		slog.String("identity_id", u.ID))
	return &u, true, nil
}

// DeleteUser removes an identity. Used to discard an account provisioned
// for a license claim that then lost the activation race.
func (p *Provider) DeleteUser(ctx context.Context, userID string) error {
	if err := p.adminCall().do(ctx, http.MethodDelete, "/admin/users/"+userID, nil, nil); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "identity deleted", slog.String("identity_id", userID))
	return nil
}

// SignInWithPassword exchanges credentials for a session. A rejected
// credential or unknown email yields ErrInvalidCredentials.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, *User, error) {
	payload := map[string]string{"email": email, "password": password}

	var tok tokenResponse
	err := p.anonCall().do(ctx, http.MethodPost, "/token?grant_type=password", payload, &tok)
	if err != nil {
		return nil, nil, err
	}
	if tok.AccessToken == "" || tok.User == nil {
		return nil, nil, ErrInvalidCredentials
	}

	session := &domain.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    tok.ExpiresIn,
	}
	return session, tok.User, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var tok tokenResponse
	err := p.anonCall().do(ctx, http.MethodPost, "/token?grant_type=refresh_token", payload, &tok)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, ErrTokenRejected
	}

	return &domain.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    tok.ExpiresIn,
	}, nil
}

// GetUser returns the identity behind an access token. The provider is
// authoritative for metadata; local JWT checks are only a fast pre-filter.
func (p *Provider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := p.userCall(accessToken).do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, ErrTokenRejected
	}
	return &u, nil
}

// UpdateUserMetadata amends identity metadata without changing the id.
// Used when a sub-account is re-assigned to a different section.
func (p *Provider) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]interface{}) error {
	payload := map[string]interface{}{"user_metadata": metadata}
	return p.adminCall().do(ctx, http.MethodPut, "/admin/users/"+userID, payload, nil)
}
