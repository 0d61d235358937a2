package services

import (
	"context"
	"errors"
	"fmt"

	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/storage"
)

// Drift is a wallet whose stored balance disagrees with its ledger.
type Drift struct {
	Ledger core.WalletLedger
	Fixed  bool
}

// ReconcileReport summarises one reconciliation run.
type ReconcileReport struct {
	Checked int
	Drifts  []Drift
}

// Reconciler recomputes every wallet balance from opening balance,
// transactions and transfers and compares it with the stored balance.
type Reconciler struct {
	repo     *storage.Repository
	fix      bool
	logger   *log.Logger
	onChange func(userID int64)
}

func NewReconciler(repo *storage.Repository, fix bool, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Reconciler{repo: repo, fix: fix, logger: logger.WithComponent(log.ComponentReconcile)}
}

// OnChange registers fn to run for users whose balance was repaired.
func (r *Reconciler) OnChange(fn func(userID int64)) {
	r.onChange = fn
}

// Run checks all wallets. With fixing enabled, drifted balances are moved to
// the ledger value; a ledger that would imply a negative balance is only
// reported. Wallets deleted while the run is in progress are skipped.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	wallets, err := r.repo.ListAllWallets(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}

	for _, w := range wallets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		d, err := r.reconcileWallet(ctx, w.ID)
		if errors.Is(err, core.ErrNotFound) {
			r.logger.DebugContext(ctx, "Wallet vanished during reconciliation", log.FieldWalletID, w.ID)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("reconcile wallet %d: %w", w.ID, err)
		}
		report.Checked++

		if d.Ledger.Drift().Cents == 0 {
			continue
		}
		report.Drifts = append(report.Drifts, d)
		r.logger.WarnContext(ctx, "Wallet balance drift",
			log.FieldUserID, d.Ledger.UserID,
			log.FieldWalletID, d.Ledger.WalletID,
			"stored_cents", d.Ledger.Balance.Cents,
			"expected_cents", d.Ledger.Expected().Cents,
			"fixed", d.Fixed)
		if d.Fixed && r.onChange != nil {
			r.onChange(d.Ledger.UserID)
		}
	}

	r.logger.InfoContext(ctx, "Reconciliation finished",
		"checked", report.Checked,
		"drifted", len(report.Drifts))
	return report, nil
}

// reconcileWallet reads the ledger with the wallet row locked and, when
// fixing, shifts the balance by the drift so the correction is relative to
// what is stored at commit time.
func (r *Reconciler) reconcileWallet(ctx context.Context, walletID int64) (Drift, error) {
	var d Drift
	err := r.repo.WithTx(ctx, func(tx *storage.Repository) error {
		l, err := tx.WalletLedger(ctx, walletID)
		if err != nil {
			return err
		}
		d = Drift{Ledger: l}
		if l.Drift().Cents == 0 || !r.fix || l.Expected().Cents < 0 {
			return nil
		}
		delta := l.Expected().Cents - l.Balance.Cents
		if err := tx.ShiftBalance(ctx, walletID, delta); err != nil {
			return err
		}
		d.Fixed = true
		return nil
	})
	return d, err
}
