package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler periodically checks every wallet balance against its ledger and logs drift.
// It never corrects balances itself.
type Reconciler struct {
	wallet   *WalletService
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler returns a worker. A non-positive interval disables it.
func NewReconciler(wallet *WalletService, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{wallet: wallet, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("wallet reconciler disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and returns the number of drifted wallets.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	drifted, err := r.wallet.ReconcileAll(ctx)
	if err != nil {
		r.logger.Error("wallet reconciliation failed", zap.Error(err))
		return 0
	}
	for _, rec := range drifted {
		r.logger.Warn("wallet balance drift",
			zap.String("student_id", rec.StudentID),
			zap.String("roll_no", rec.RollNo),
			zap.String("balance", rec.Balance.String()),
			zap.String("ledger_net", rec.LedgerNet.String()),
			zap.String("drift", rec.Drift.String()),
		)
	}
	if len(drifted) == 0 {
		r.logger.Debug("wallet reconciliation clean")
	}
	return len(drifted)
}
