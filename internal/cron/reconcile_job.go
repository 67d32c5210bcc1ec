package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const ReconcileJobName = "ledger-reconcile"

type reconciler interface {
	Reconcile(ctx context.Context, staleBefore time.Time) (ledger.ReconcileReport, error)
}

// ReconcileJobParams configure the ledger reconciliation job.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	Ledger     reconciler
	StaleAfter time.Duration
	Now        func() time.Time
}

type reconcileJob struct {
	logg       *logger.Logger
	ledger     reconciler
	staleAfter time.Duration
	now        func() time.Time
}

// NewReconcileJob builds the job that resolves transactions left open by
// gateway timeouts or missed callbacks.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.StaleAfter <= 0 {
		return nil, fmt.Errorf("stale-after duration must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reconcileJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		staleAfter: params.StaleAfter,
		now:        now,
	}, nil
}

func (j *reconcileJob) Name() string {
	return ReconcileJobName
}

func (j *reconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	report, err := j.ledger.Reconcile(ctx, cutoff)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"checked":   report.Checked,
		"resolved":  report.Resolved,
		"unchanged": report.Unchanged,
		"skipped":   report.Skipped,
	}), "ledger.reconciled")
	return err
}
