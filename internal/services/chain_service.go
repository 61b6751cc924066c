package services

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"kdsops/pkg/contracts/domain"
)

// dashboardFanout caps concurrent per-outlet analysis reads.
const dashboardFanout = 8

// ChainStore is the slice of the tenant store the chain service reads.
type ChainStore interface {
	OutletsByChain(ctx context.Context, chainID string) ([]domain.Outlet, error)
	OutletDailyStats(ctx context.Context, outletID, date string) (*domain.OutletDailyStats, error)
}

// DashboardSummary aggregates one day across every outlet of a chain.
type DashboardSummary struct {
	Date          string                 `json:"date"`
	TotalOutlets  int                    `json:"total_outlets"`
	ActiveOutlets int                    `json:"active_outlets"`
	TotalOrders   int                    `json:"total_orders"`
	TotalRevenue  float64                `json:"total_revenue"`
	Outlets       []OutletDashboardEntry `json:"outlets"`
}

// OutletDashboardEntry is one outlet's slice of the chain dashboard.
type OutletDashboardEntry struct {
	OutletID   string                   `json:"outlet_id"`
	OutletName string                   `json:"outlet_name"`
	IsActive   bool                     `json:"is_active"`
	Stats      *domain.OutletDailyStats `json:"stats"`
}

// ChainService serves chain-owner views over the outlets of a chain.
type ChainService struct {
	store  ChainStore
	logger *slog.Logger
}

// NewChainService creates the chain use cases
func NewChainService(chainStore ChainStore, logger *slog.Logger) *ChainService {
	return &ChainService{
		store:  chainStore,
		logger: logger.With(slog.String("component", "chain_service")),
	}
}

// Outlets lists the outlets belonging to a chain.
func (s *ChainService) Outlets(ctx context.Context, chainID string) ([]domain.Outlet, error) {
	return s.store.OutletsByChain(ctx, chainID)
}

// Dashboard aggregates the given day's analysis across all outlets of the
// chain. Per-outlet reads fan out concurrently; one failing outlet fails the
// whole view rather than silently under-reporting revenue.
func (s *ChainService) Dashboard(ctx context.Context, chainID, date string) (*DashboardSummary, error) {
	outlets, err := s.store.OutletsByChain(ctx, chainID)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		Date:         date,
		TotalOutlets: len(outlets),
		Outlets:      make([]OutletDashboardEntry, len(outlets)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFanout)

	var mu sync.Mutex
	for i, outlet := range outlets {
		g.Go(func() error {
			stats, err := s.store.OutletDailyStats(gctx, outlet.ID, date)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Outlets[i] = OutletDashboardEntry{
				OutletID:   outlet.ID,
				OutletName: outlet.OutletName,
				IsActive:   outlet.IsActive,
				Stats:      stats,
			}
			if outlet.IsActive {
				summary.ActiveOutlets++
			}
			summary.TotalOrders += stats.TotalOrders
			summary.TotalRevenue += stats.TotalRevenue
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard aggregation failed",
			slog.String("chain_id", chainID),
			slog.String("date", date),
			slog.String("error", err.Error()))
		return nil, err
	}
	return summary, nil
}
