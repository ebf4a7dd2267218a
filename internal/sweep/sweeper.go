// Package sweep periodically reconciles every pending order against its
// payment backend. It is the safety net behind the push channels: a missed
// webhook or a dropped stream only delays settlement until the next cycle.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/observ"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type Sweeper struct {
	orders   usecase.OrderRepo
	resolver *usecase.Resolver
	checker  *provider.Checker

	interval      time.Duration
	maxPendingAge time.Duration
	now           func() time.Time
	log           *slog.Logger
}

func New(orders usecase.OrderRepo, resolver *usecase.Resolver, checker *provider.Checker,
	interval, maxPendingAge time.Duration) *Sweeper {
	return &Sweeper{
		orders:        orders,
		resolver:      resolver,
		checker:       checker,
		interval:      interval,
		maxPendingAge: maxPendingAge,
		now:           time.Now,
		log:           logging.New("sweeper"),
	}
}

// Run blocks until ctx is cancelled. A cycle in flight finishes before Run
// returns, so shutdown never leaves an order half-reconciled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation cycle. Per-order failures are logged and
// counted, never fatal: one unreachable backend must not stall the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	observ.SweepCycles.Inc()

	pending, err := s.orders.ListPending(ctx)
	if err != nil {
		observ.SweepErrors.Inc()
		s.log.Error("list pending failed", "err", err)
		return
	}

	for _, order := range pending {
		if ctx.Err() != nil {
			return
		}

		if s.stale(order.CreatedAt) {
			removed, err := s.orders.DeleteIfPending(ctx, order.ID)
			if err != nil {
				observ.SweepErrors.Inc()
				s.log.Error("stale prune failed", "order_id", order.ID, "err", err)
			} else if removed {
				s.log.Info("pruned stale pending order", "order_id", order.ID)
			}
			continue
		}

		st, err := s.checker.Check(ctx, order)
		if err != nil {
			observ.SweepErrors.Inc()
			s.log.Warn("status check failed", "order_id", order.ID,
				"provider", order.Provider, "err", err)
			continue
		}

		if _, err := s.resolver.Reconcile(ctx, order.SettlementID(), usecase.Observation{
			Status: st.Canonical, Raw: st.Raw, Txid: st.Txid,
		}); err != nil {
			observ.SweepErrors.Inc()
			s.log.Error("reconcile failed", "order_id", order.ID, "err", err)
		}
	}
}

func (s *Sweeper) stale(createdAt time.Time) bool {
	if s.maxPendingAge <= 0 {
		return false
	}
	return s.now().Sub(createdAt) > s.maxPendingAge
}
