package store

import (
	"context"
	"net/url"
	"time"

	"kdsops/pkg/contracts/domain"
)

// licenseKeysTable is the secondary ledger of independently minted codes.
const licenseKeysTable = "license_keys"

// LicenseKeyByCode looks up a code in the ledger. Returns ErrNoRows when the
// code was never minted there (historical codes live on tenant rows instead).
func (c *Client) LicenseKeyByCode(ctx context.Context, code string) (*domain.LicenseKey, error) {
	q := url.Values{}
	q.Set("license_key", "eq."+code)
	q.Set("select", "*")

	var rows []domain.LicenseKey
	err := c.selectRows(ctx, licenseKeysTable, q, &rows)
	return one(rows, err)
}

// LicenseKeyByID fetches a ledger row by primary key.
func (c *Client) LicenseKeyByID(ctx context.Context, id string) (*domain.LicenseKey, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")

	var rows []domain.LicenseKey
	err := c.selectRows(ctx, licenseKeysTable, q, &rows)
	return one(rows, err)
}

// ListLicenseKeys returns every ledger row, newest first.
func (c *Client) ListLicenseKeys(ctx context.Context) ([]domain.LicenseKey, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []domain.LicenseKey
	if err := c.selectRows(ctx, licenseKeysTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateLicenseKey mints a new ledger row.
func (c *Client) CreateLicenseKey(ctx context.Context, key domain.LicenseKey) (*domain.LicenseKey, error) {
	body := map[string]interface{}{
		"license_key": key.LicenseKey,
		"key_type":    key.KeyType,
		"is_used":     false,
	}
	if key.OutletID != nil {
		body["outlet_id"] = *key.OutletID
	}
	if key.ChainID != nil {
		body["chain_id"] = *key.ChainID
	}
	if key.ExpiresAt != nil {
		body["expires_at"] = key.ExpiresAt.UTC().Format(time.RFC3339)
	}

	var rows []domain.LicenseKey
	err := c.insertRow(ctx, licenseKeysTable, body, &rows)
	return one(rows, err)
}

// ConsumeLicenseKey flips is_used false->true for the given code, recording
// the consumer. The update is conditional on is_used=eq.false, so exactly one
// concurrent caller wins; everyone else observes won=false. The flag never
// reverts.
func (c *Client) ConsumeLicenseKey(ctx context.Context, code, usedBy string, at time.Time) (won bool, err error) {
	q := url.Values{}
	q.Set("license_key", "eq."+code)
	q.Set("is_used", "eq.false")

	changes := map[string]interface{}{
		"is_used": true,
		"used_by": usedBy,
		"used_at": at.UTC().Format(time.RFC3339),
	}

	n, err := c.updateRows(ctx, licenseKeysTable, q, changes)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
