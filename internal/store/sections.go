package store

import (
	"context"
	"net/url"

	"kdsops/pkg/contracts/domain"
)

const sectionManagersTable = "section_managers"

// SectionManagerByAuthUserID finds the sub-account record linked to the given
// identity id.
func (c *Client) SectionManagerByAuthUserID(ctx context.Context, authUserID string) (*domain.SectionManager, error) {
	q := url.Values{}
	q.Set("auth_user_id", "eq."+authUserID)
	q.Set("select", "*")

	var rows []domain.SectionManager
	err := c.selectRows(ctx, sectionManagersTable, q, &rows)
	return one(rows, err)
}
