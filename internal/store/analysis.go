package store

import (
	"context"
	"errors"
	"net/url"

	"kdsops/pkg/contracts/domain"
)

const dailyAnalysisTable = "kds_daily_analysis"

// OutletDailyStats reads the analysis row for one outlet and date. A missing
// row yields a zeroed summary: the analytics collaborator writes these rows
// asynchronously and may simply not have run yet.
func (c *Client) OutletDailyStats(ctx context.Context, outletID, date string) (*domain.OutletDailyStats, error) {
	q := url.Values{}
	q.Set("outlet_id", "eq."+outletID)
	q.Set("analysis_date", "eq."+date)
	q.Set("select", "*")

	var rows []domain.OutletDailyStats
	if err := c.selectRows(ctx, dailyAnalysisTable, q, &rows); err != nil {
		return nil, err
	}
	stats, err := one(rows, nil)
	if errors.Is(err, ErrNoRows) {
		return &domain.OutletDailyStats{OutletID: outletID, AnalysisDate: date}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}
