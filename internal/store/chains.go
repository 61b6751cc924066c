package store

import (
	"context"
	"net/url"

	"kdsops/pkg/contracts/domain"
)

const chainsTable = "chain_outlets"

// ChainByMasterKey is the primary master-key lookup on chain rows.
func (c *Client) ChainByMasterKey(ctx context.Context, code string) (*domain.Chain, error) {
	q := url.Values{}
	q.Set("master_license_key", "eq."+code)
	q.Set("select", "*")

	var rows []domain.Chain
	err := c.selectRows(ctx, chainsTable, q, &rows)
	return one(rows, err)
}

// ChainByID fetches a chain by primary key.
func (c *Client) ChainByID(ctx context.Context, id string) (*domain.Chain, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")

	var rows []domain.Chain
	err := c.selectRows(ctx, chainsTable, q, &rows)
	return one(rows, err)
}

// ListChains returns all chains, newest first.
func (c *Client) ListChains(ctx context.Context) ([]domain.Chain, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []domain.Chain
	if err := c.selectRows(ctx, chainsTable, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateChain inserts a new chain row (admin provisioning).
func (c *Client) CreateChain(ctx context.Context, chain domain.Chain) (*domain.Chain, error) {
	body := map[string]interface{}{
		"chain_name":         chain.ChainName,
		"master_admin_name":  chain.MasterAdminName,
		"master_admin_email": chain.MasterAdminEmail,
		"master_license_key": chain.MasterLicenseKey,
		"master_key_used":    false,
		"is_active":          false,
	}

	var rows []domain.Chain
	err := c.insertRow(ctx, chainsTable, body, &rows)
	return one(rows, err)
}

// UpdateChain applies the given column changes to a chain row.
func (c *Client) UpdateChain(ctx context.Context, chainID string, changes map[string]interface{}) error {
	q := url.Values{}
	q.Set("id", "eq."+chainID)

	n, err := c.updateRows(ctx, chainsTable, q, changes)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// ActivateChain sets the activation flags on a chain row, conditional on the
// master key being unconsumed; the chain-owner analogue of ActivateOutlet.
func (c *Client) ActivateChain(ctx context.Context, chainID, authUserID string) (won bool, err error) {
	q := url.Values{}
	q.Set("id", "eq."+chainID)
	q.Set("master_key_used", "eq.false")

	changes := map[string]interface{}{
		"is_active":       true,
		"master_key_used": true,
	}
	if authUserID != "" {
		changes["auth_user_id"] = authUserID
	}

	n, err := c.updateRows(ctx, chainsTable, q, changes)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
