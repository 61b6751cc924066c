package store

import (
	"context"
	"net/url"

	"kdsops/pkg/contracts/domain"
)

const adminsTable = "admin_users"

// AdminByID looks up the administrator registry by identity id. Admin status
// is a separate grant; absence here means Forbidden regardless of how valid
// the session is.
func (c *Client) AdminByID(ctx context.Context, identityID string) (*domain.AdminUser, error) {
	q := url.Values{}
	q.Set("id", "eq."+identityID)
	q.Set("select", "*")

	var rows []domain.AdminUser
	err := c.selectRows(ctx, adminsTable, q, &rows)
	return one(rows, err)
}
