package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

type fakeReconciler struct {
	cutoff time.Time
	report ledger.ReconcileReport
	err    error
}

func (f *fakeReconciler) Reconcile(_ context.Context, staleBefore time.Time) (ledger.ReconcileReport, error) {
	f.cutoff = staleBefore
	return f.report, f.err
}

func TestReconcileJobUsesStaleCutoff(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeReconciler{report: ledger.ReconcileReport{Checked: 2, Resolved: 2}}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Ledger:     fake,
		StaleAfter: 15 * time.Minute,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.Equal(t, ReconcileJobName, job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-15*time.Minute), fake.cutoff)
}

func TestReconcileJobSurfacesEveryFailure(t *testing.T) {
	combined := multierr.Combine(errors.New("lookup transaction 1: timeout"), errors.New("apply transaction 2: conflict"))
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Ledger:     &fakeReconciler{err: combined},
		StaleAfter: time.Minute,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestNewReconcileJobValidates(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	_, err := NewReconcileJob(ReconcileJobParams{Logger: logg, StaleAfter: time.Minute})
	assert.Error(t, err)
	_, err = NewReconcileJob(ReconcileJobParams{Logger: logg, Ledger: &fakeReconciler{}})
	assert.Error(t, err)
}
