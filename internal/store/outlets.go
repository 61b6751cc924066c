package store

import (
	"context"
	"net/url"

	"kdsops/pkg/contracts/domain"
)

const outletsTable = "single_outlets"

// OutletByLicenseKey is the primary license lookup: every administratively
// created outlet carries its code on the row itself.
func (c *Client) OutletByLicenseKey(ctx context.Context, code string) (*domain.Outlet, error) {
	q := url.Values{}
	q.Set("license_key", "eq."+code)
	q.Set("select", "*")

	var rows []domain.Outlet
	err := c.selectRows(ctx, outletsTable, q, &rows)
	return one(rows, err)
}

// OutletByID fetches an outlet by primary key.
func (c *Client) OutletByID(ctx context.Context, id string) (*domain.Outlet, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")

	var rows []domain.Outlet
	err := c.selectRows(ctx, outletsTable, q, &rows)
	return one(rows, err)
}

// ListOutlets returns all outlets, newest first.
func (c *Client) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []domain.Outlet
	if err := c.selectRows(ctx, outletsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// OutletsByChain returns the outlets belonging to a chain, oldest first.
func (c *Client) OutletsByChain(ctx context.Context, chainID string) ([]domain.Outlet, error) {
	q := url.Values{}
	q.Set("chain_id", "eq."+chainID)
	q.Set("select", "*")
	q.Set("order", "created_at.asc")

	var rows []domain.Outlet
	if err := c.selectRows(ctx, outletsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ActivateOutlet sets the activation flags on an outlet row, conditional on
// the embedded code being unconsumed. Exactly one concurrent activation wins;
// the flags only ever move false->true.
func (c *Client) ActivateOutlet(ctx context.Context, outletID, authUserID string) (won bool, err error) {
	q := url.Values{}
	q.Set("id", "eq."+outletID)
	q.Set("license_key_used", "eq.false")

	changes := map[string]interface{}{
		"is_active":        true,
		"license_key_used": true,
	}
	if authUserID != "" {
		changes["auth_user_id"] = authUserID
	}

	n, err := c.updateRows(ctx, outletsTable, q, changes)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateOutlet inserts a new outlet row (admin provisioning).
func (c *Client) CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	body := map[string]interface{}{
		"outlet_name":      outlet.OutletName,
		"outlet_type":      outlet.OutletType,
		"owner_name":       outlet.OwnerName,
		"owner_email":      outlet.OwnerEmail,
		"owner_phone":      outlet.OwnerPhone,
		"address":          outlet.Address,
		"city":             outlet.City,
		"license_key":      outlet.LicenseKey,
		"license_key_used": false,
		"is_active":        false,
	}
	if outlet.ChainID != nil {
		body["chain_id"] = *outlet.ChainID
	}

	var rows []domain.Outlet
	err := c.insertRow(ctx, outletsTable, body, &rows)
	return one(rows, err)
}

// UpdateOutlet applies the given column changes to an outlet row.
func (c *Client) UpdateOutlet(ctx context.Context, outletID string, changes map[string]interface{}) error {
	q := url.Values{}
	q.Set("id", "eq."+outletID)

	n, err := c.updateRows(ctx, outletsTable, q, changes)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}
