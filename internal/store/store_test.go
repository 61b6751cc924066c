package store

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

func newTestClient(baseURL string) *Client {
	return New(config.StoreConfig{
		BaseURL:    baseURL,
		ServiceKey: "store-key",
		Timeout:    5 * time.Second,
	}, testLogger())
}

func TestOutletByLicenseKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/single_outlets", r.URL.Path)
		assert.Equal(t, "eq.KDS-AAAA-BBBB-CCCC-DDDD", r.URL.Query().Get("license_key"))
		assert.Equal(t, "store-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer store-key", r.Header.Get("Authorization"))

		w.Write([]byte(`[{"id":"out-1","outlet_name":"Harbor Grill","license_key_used":false,"is_active":false}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outlet, err := c.OutletByLicenseKey(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.Equal(t, "out-1", outlet.ID)
	assert.Equal(t, "Harbor Grill", outlet.OutletName)
}

func TestLookupNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.OutletByLicenseKey(context.Background(), "KDS-ZZZZ-ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = c.LicenseKeyByCode(context.Background(), "KDS-ZZZZ-ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestConsumeLicenseKeyCAS(t *testing.T) {
	t.Run("winner sees one updated row", func(t *testing.T) {
		var gotQuery map[string][]string
		var gotChanges map[string]interface{}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/license_keys", r.URL.Path)
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			gotQuery = r.URL.Query()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotChanges))

			w.Write([]byte(`[{"id":"key-1","license_key":"KDS-AAAA-BBBB-CCCC-DDDD","is_used":true}]`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		won, err := c.ConsumeLicenseKey(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD", "user-1", time.Now())
		require.NoError(t, err)
		assert.True(t, won)

		// The write must be conditional on the unconsumed state.
		assert.Equal(t, []string{"eq.false"}, gotQuery["is_used"])
		assert.Equal(t, true, gotChanges["is_used"])
		assert.Equal(t, "user-1", gotChanges["used_by"])
		assert.NotEmpty(t, gotChanges["used_at"])
	})

	t.Run("loser sees zero updated rows", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		won, err := c.ConsumeLicenseKey(context.Background(), "KDS-AAAA-BBBB-CCCC-DDDD", "user-2", time.Now())
		require.NoError(t, err)
		assert.False(t, won)
	})
}

func TestActivateOutletCAS(t *testing.T) {
	var gotQuery map[string][]string
	var gotChanges map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/single_outlets", r.URL.Path)
		gotQuery = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotChanges))

		w.Write([]byte(`[{"id":"out-1","is_active":true,"license_key_used":true}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	won, err := c.ActivateOutlet(context.Background(), "out-1", "user-1")
	require.NoError(t, err)
	assert.True(t, won)

	assert.Equal(t, []string{"eq.out-1"}, gotQuery["id"])
	assert.Equal(t, []string{"eq.false"}, gotQuery["license_key_used"])
	assert.Equal(t, true, gotChanges["is_active"])
	assert.Equal(t, true, gotChanges["license_key_used"])
	assert.Equal(t, "user-1", gotChanges["auth_user_id"])
}

func TestActivateChainCAS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chain_outlets", r.URL.Path)
		assert.Equal(t, "eq.false", r.URL.Query().Get("master_key_used"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	won, err := c.ActivateChain(context.Background(), "chain-1", "user-9")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestCreateOutletDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// New outlets always start unconsumed and inactive.
		assert.Equal(t, false, body["license_key_used"])
		assert.Equal(t, false, body["is_active"])

		w.Write([]byte(`[{"id":"out-new","outlet_name":"Dockside"}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outlet, err := c.CreateOutlet(context.Background(), domain.Outlet{
		OutletName: "Dockside",
		OutletType: "restaurant",
		OwnerEmail: "owner@example.com",
		LicenseKey: "KDS-AAAA-BBBB-CCCC-DDDD",
	})
	require.NoError(t, err)
	assert.Equal(t, "out-new", outlet.ID)
}

func TestOutletDailyStatsMissingRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kds_daily_analysis", r.URL.Path)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	stats, err := c.OutletDailyStats(context.Background(), "out-1", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, "out-1", stats.OutletID)
	assert.Equal(t, "2026-08-30", stats.AnalysisDate)
	assert.Zero(t, stats.TotalOrders)
	assert.Zero(t, stats.TotalRevenue)
}

func TestStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.OutletByID(context.Background(), "out-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRows)
}
