package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kdsops/internal/config"
	"kdsops/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProvider(baseURL string) *Provider {
	return NewProvider(config.IdentityConfig{
		BaseURL:    baseURL,
		AnonKey:    "anon-key",
		ServiceKey: "service-key",
		Timeout:    5 * time.Second,
	}, testLogger())
}

func TestCreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/users", r.URL.Path)
		// Admin endpoints use the service role key for both headers.
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["email_confirm"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "user-123",
			"email":         payload["email"],
			"user_metadata": payload["user_metadata"],
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	user, created, err := p.CreateUser(context.Background(), "owner@example.com", "secret123", map[string]interface{}{
		domain.UserTypeKey: domain.RoleOutletOwner,
		domain.OutletIDKey: "out-1",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-123", user.ID)
	assert.Equal(t, "out-1", user.MetaString(domain.OutletIDKey))
	assert.Equal(t, domain.RoleOutletOwner, user.Role())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "structured error code",
			status: 422,
			body:   `{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`,
		},
		{
			name:   "message substring only",
			status: 400,
			body:   `{"msg":"User already registered"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := newTestProvider(srv.URL)
			user, created, err := p.CreateUser(context.Background(), "owner@example.com", "secret123", nil)

			require.NoError(t, err)
			assert.False(t, created)
			assert.Nil(t, user)
		})
	}
}

func TestSignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		// Credential exchange must use the anon key, never the service key.
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"user": map[string]interface{}{
				"id":    "user-123",
				"email": "owner@example.com",
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	session, user, err := p.SignInWithPassword(context.Background(), "owner@example.com", "secret123")

	require.NoError(t, err)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.Equal(t, "rt-1", session.RefreshToken)
	assert.Equal(t, "bearer", session.TokenType)
	assert.Equal(t, "user-123", user.ID)
}

func TestSignInRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"token endpoint shape", `{"error":"invalid_grant","error_description":"Invalid login credentials"}`},
		{"structured error code", `{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`},
		{"message substring only", `{"msg":"Invalid login credentials"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := newTestProvider(srv.URL)
			_, _, err := p.SignInWithPassword(context.Background(), "owner@example.com", "wrong")
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		// The presented token authorizes the call; the anon key identifies
		// the client.
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		json.NewEncoder(w).Encode(map[string]interface{}{"id": "user-123", "email": "owner@example.com"})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	user, err := p.GetUser(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "user-123", user.ID)
}

func TestGetUserRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid JWT"}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.GetUser(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestRefreshSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at-2",
			"refresh_token": "rt-2",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	session, err := p.RefreshSession(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", session.AccessToken)
	assert.Equal(t, "rt-2", session.RefreshToken)
}

func TestUpdateUserMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/users/user-123", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	err := p.UpdateUserMetadata(context.Background(), "user-123", map[string]interface{}{
		domain.SectionIDKey: "grill",
	})
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/admin/users/user-123", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	assert.NoError(t, p.DeleteUser(context.Background(), "user-123"))
}

func TestTranslateErrorFallback(t *testing.T) {
	err := translateError(500, []byte(`{"msg":"backend exploded"}`))

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 500, reqErr.Status)
	assert.Contains(t, reqErr.Error(), "backend exploded")
}
