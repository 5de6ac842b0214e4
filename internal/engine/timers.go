package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/indexlab/hedging-engine/internal/balance"
)

// RunTimers drives the periodic balance refresh and hedge cycle until
// the context is cancelled. Intervals come from TimerSettings with
// fall-back defaults; changes apply from the next tick.
func RunTimers(ctx context.Context, c *Coordinator, balances *balance.Service, logger *slog.Logger) {
	balanceTicker := time.NewTicker(c.interval(ctx, balanceRefresh))
	hedgeTicker := time.NewTicker(c.interval(ctx, hedgeCycle))
	defer balanceTicker.Stop()
	defer hedgeTicker.Stop()

	balances.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("timers stopped")
			return
		case <-balanceTicker.C:
			balances.Refresh(ctx)
			balanceTicker.Reset(c.interval(ctx, balanceRefresh))
		case <-hedgeTicker.C:
			c.RunHedgeCycle(ctx)
			hedgeTicker.Reset(c.interval(ctx, hedgeCycle))
		}
	}
}

type timerKind int

const (
	balanceRefresh timerKind = iota
	hedgeCycle
)

func (c *Coordinator) interval(ctx context.Context, kind timerKind) time.Duration {
	timers, err := c.store.GetTimerSettings(ctx)
	if err != nil {
		timers = nil
	}

	switch kind {
	case balanceRefresh:
		if timers != nil && timers.BalanceRefresh > 0 {
			return timers.BalanceRefresh
		}
		return DefaultBalanceRefresh
	default:
		if timers != nil && timers.HedgeCycle > 0 {
			return timers.HedgeCycle
		}
		return DefaultHedgeCycle
	}
}
