package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/surveycash/surveycash-backend/internal/withdrawals"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

const (
	defaultReconcileBatch       = 200
	defaultReconcileConcurrency = 4
	defaultReconcileItemTimeout = 20 * time.Second
)

type withdrawalChecker interface {
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Withdrawal, error)
	Check(ctx context.Context, withdrawalID uuid.UUID, trigger string) (*models.Withdrawal, error)
}

// PayoutReconcileJobParams configures the payout sweep.
type PayoutReconcileJobParams struct {
	Logger      *logger.Logger
	Withdrawals withdrawalChecker
	Batch       int
	Concurrency int
	ItemTimeout time.Duration
}

// NewPayoutReconcileJob builds the sweep that asks the provider about every
// open withdrawal.
func NewPayoutReconcileJob(params PayoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Withdrawals == nil {
		return nil, fmt.Errorf("withdrawals service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultReconcileConcurrency
	}
	timeout := params.ItemTimeout
	if timeout <= 0 {
		timeout = defaultReconcileItemTimeout
	}
	return &payoutReconcileJob{
		logg:        params.Logger,
		withdrawals: params.Withdrawals,
		batch:       batch,
		concurrency: concurrency,
		itemTimeout: timeout,
	}, nil
}

type payoutReconcileJob struct {
	logg        *logger.Logger
	withdrawals withdrawalChecker
	batch       int
	concurrency int
	itemTimeout time.Duration
}

type sweepTally struct {
	mu      sync.Mutex
	skipped int
	open    int
	paid    int
	failed  int
	errs    error
}

func (t *sweepTally) skip() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *sweepTally) record(status enums.WithdrawalStatus, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.errs = multierr.Append(t.errs, err)
		return
	}
	switch status {
	case enums.WithdrawalStatusPaid:
		t.paid++
	case enums.WithdrawalStatusFailed:
		t.failed++
	default:
		t.open++
	}
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

// Run pages through every open withdrawal, batch rows at a time, and checks
// each one independently. One failing item never stops the others; all
// failures are returned together.
func (j *payoutReconcileJob) Run(ctx context.Context) error {
	logCtx := j.logg.WithField(ctx, "job", j.Name())

	tally := &sweepTally{}
	var group errgroup.Group
	group.SetLimit(j.concurrency)

	candidates, pages := 0, 0
	after := uuid.Nil
	for {
		page, err := j.withdrawals.ListOpen(logCtx, after, j.batch)
		if err != nil {
			tally.record("", fmt.Errorf("list open withdrawals after %s: %w", after, err))
			break
		}
		pages++
		candidates += len(page)
		for i := range page {
			j.dispatch(logCtx, &group, tally, page[i])
		}
		if len(page) < j.batch {
			break
		}
		after = page[len(page)-1].ID
		if err := ctx.Err(); err != nil {
			tally.record("", err)
			break
		}
	}
	_ = group.Wait()

	reportCtx := j.logg.WithFields(logCtx, map[string]any{
		"candidates": candidates,
		"pages":      pages,
		"skipped":    tally.skipped,
		"open":       tally.open,
		"paid":       tally.paid,
		"failed":     tally.failed,
		"errors":     len(multierr.Errors(tally.errs)),
	})
	j.logg.Info(reportCtx, "payout reconcile sweep complete")
	return tally.errs
}

func (j *payoutReconcileJob) dispatch(ctx context.Context, group *errgroup.Group, tally *sweepTally, withdrawal models.Withdrawal) {
	if withdrawal.ProviderBatchID == nil || *withdrawal.ProviderBatchID == "" {
		tally.skip()
		return
	}
	group.Go(func() error {
		itemCtx, cancel := context.WithTimeout(ctx, j.itemTimeout)
		defer cancel()
		checked, err := j.withdrawals.Check(itemCtx, withdrawal.ID, withdrawals.TriggerSweep)
		if err != nil {
			tally.record("", fmt.Errorf("withdrawal %s: %w", withdrawal.ID, err))
			return nil
		}
		tally.record(checked.Status, nil)
		return nil
	})
}
