package withdrawals

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/db/dbtest"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/enums"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
	"github.com/surveycash/surveycash-backend/pkg/metrics"
	"github.com/surveycash/surveycash-backend/pkg/paypal"
)

type fakeProvider struct {
	mu        sync.Mutex
	createErr error
	created   []paypal.PayoutRequest
	statuses  []*paypal.Batch
	getErr    error
	gets      int
}

func (f *fakeProvider) CreatePayout(_ context.Context, req paypal.PayoutRequest) (*paypal.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &paypal.Batch{BatchID: "BATCH-" + req.SenderBatchID, BatchStatus: "PENDING"}, nil
}

// GetPayoutBatch replays statuses in order, repeating the last one.
func (f *fakeProvider) GetPayoutBatch(_ context.Context, batchID string) (*paypal.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.statuses) == 0 {
		return &paypal.Batch{BatchID: batchID, BatchStatus: "PENDING"}, nil
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return next, nil
}

type fixture struct {
	svc      Service
	conn     *gorm.DB
	provider *fakeProvider
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	provider := &fakeProvider{}
	svc, err := NewService(ServiceParams{
		DB:       db.NewFromGorm(conn),
		Repo:     NewRepository(conn),
		Accounts: accounts.NewRepository(conn),
		Ledger:   ledgerSvc,
		Provider: provider,
		Metrics:  metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		Config: config.PayoutsConfig{
			Denominations: []int64{500, 1000, 2500},
			ItemTimeout:   time.Second,
			PollAttempts:  3,
			PollInterval:  time.Millisecond,
		},
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, provider: provider}
}

func (f fixture) journal(t *testing.T, withdrawalID uuid.UUID) []models.LedgerEvent {
	t.Helper()
	var rows []models.LedgerEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&rows, "reference_id = ?", withdrawalID).Error)
	return rows
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestRequestCashoutReservesAndStartsPayout(t *testing.T) {
	f := newFixture(t)
	account := dbtest.SeedAccount(t, f.conn, "pat@example.com", 1000, 0)

	w, err := f.svc.RequestCashout(context.Background(), CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: " pay@example.com "})
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusProcessing, w.Status)
	require.NotNil(t, w.ProviderBatchID)
	assert.Equal(t, "BATCH-"+w.ID.String(), *w.ProviderBatchID)
	assert.Equal(t, "pay@example.com", w.PayoutEmail)

	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 500, got.BalanceCents)
	assert.EqualValues(t, 500, got.PendingCents)

	require.Len(t, f.provider.created, 1)
	assert.EqualValues(t, 500, f.provider.created[0].AmountCents)

	entries := f.journal(t, w.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.LedgerEventTypeCashoutReserved, entries[0].Type)
	assert.EqualValues(t, -500, entries[0].BalanceDelta)
	assert.EqualValues(t, 500, entries[0].PendingDelta)
}

func TestRequestCashoutThenProviderFailureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "quinn@example.com", 1000, 0)

	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "quinn@example.com"})
	require.NoError(t, err)

	f.provider.statuses = []*paypal.Batch{{BatchStatus: "SUCCESS", TransactionStatus: "FAILED", ErrorName: "RECEIVER_UNREGISTERED"}}
	checked, err := f.svc.Check(ctx, w.ID, TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusFailed, checked.Status)
	require.NotNil(t, checked.ErrorText)
	assert.Equal(t, "RECEIVER_UNREGISTERED", *checked.ErrorText)
	assert.NotNil(t, checked.FinalizedAt)

	// Observing the failure again must not refund twice.
	_, err = f.svc.Check(ctx, w.ID, TriggerOnDemand)
	require.NoError(t, err)

	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 1000, got.BalanceCents)
	assert.Zero(t, got.PendingCents)
	assert.Len(t, f.journal(t, w.ID), 2)
}

func TestCheckPaidSettlesPendingOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "rita@example.com", 2500, 0)

	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 2500, PayoutEmail: "rita@example.com"})
	require.NoError(t, err)

	f.provider.statuses = []*paypal.Batch{{BatchStatus: "SUCCESS", TransactionStatus: "SUCCESS"}}
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Check(ctx, w.ID, TriggerSweep)
		}()
	}
	wg.Wait()

	stored, err := f.svc.Check(ctx, w.ID, TriggerOnDemand)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusPaid, stored.Status)

	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.Zero(t, got.BalanceCents)
	assert.Zero(t, got.PendingCents)

	paid := 0
	for _, entry := range f.journal(t, w.ID) {
		if entry.Type == enums.LedgerEventTypePayoutPaid {
			paid++
			assert.EqualValues(t, -2500, entry.PendingDelta)
		}
	}
	assert.Equal(t, 1, paid)
}

func TestRequestCashoutProviderRejectionFailsFast(t *testing.T) {
	f := newFixture(t)
	account := dbtest.SeedAccount(t, f.conn, "sam@example.com", 1000, 0)
	f.provider.createErr = errors.New("paypal create_payout: 422 INSUFFICIENT_FUNDS")

	w, err := f.svc.RequestCashout(context.Background(), CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "sam@example.com"})
	require.ErrorIs(t, err, ErrPayoutFailed)
	require.NotNil(t, w)
	assert.Equal(t, enums.WithdrawalStatusFailed, w.Status)
	require.NotNil(t, w.ErrorText)
	assert.Contains(t, *w.ErrorText, "INSUFFICIENT_FUNDS")

	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 1000, got.BalanceCents)
	assert.Zero(t, got.PendingCents)

	// The failed withdrawal no longer blocks a new request.
	f.provider.createErr = nil
	_, err = f.svc.RequestCashout(context.Background(), CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "sam@example.com"})
	require.NoError(t, err)
}

func TestRequestCashoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "tom@example.com", 400, 0)

	_, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 300, PayoutEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidAmount, "amount is checked before email")

	_, err = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	longEmail := strings.Repeat("a", 250) + "@example.com"
	_, err = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 300, PayoutEmail: longEmail})
	assert.ErrorIs(t, err, ErrInvalidAmount, "amount is checked before an overlong email")
	_, err = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: longEmail})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "tom@example.com"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var count int64
	require.NoError(t, f.conn.Model(&models.Withdrawal{}).Count(&count).Error)
	assert.Zero(t, count, "rejected requests leave no withdrawal behind")
	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 400, got.BalanceCents)
	assert.Zero(t, got.PendingCents)
	assert.Empty(t, f.provider.created)
}

func TestRequestCashoutSingleOpenWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "uma@example.com", 5000, 0)

	_, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "uma@example.com"})
	require.NoError(t, err)

	_, err = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "uma@example.com"})
	assert.ErrorIs(t, err, ErrWithdrawalInProgress)
	assert.EqualValues(t, 4000, dbtest.ReloadAccount(t, f.conn, account.UserID).BalanceCents)
}

func TestOpenWithdrawalIndexRejectsSecondOpenRow(t *testing.T) {
	f := newFixture(t)
	repo := NewRepository(f.conn)
	userID := uuid.New()
	require.NoError(t, repo.Create(context.Background(), &models.Withdrawal{UserID: userID, AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusPending}))

	err := repo.Create(context.Background(), &models.Withdrawal{UserID: userID, AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusProcessing})
	require.True(t, db.IsUniqueViolation(err, ""))

	require.NoError(t, repo.Create(context.Background(), &models.Withdrawal{UserID: userID, AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusFailed}))
}

func TestCheckProviderErrorLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "vic@example.com", 500, 0)
	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "vic@example.com"})
	require.NoError(t, err)

	f.provider.getErr = errors.New("connection reset")
	got, err := f.svc.Check(ctx, w.ID, TriggerSweep)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	require.NotNil(t, got)
	assert.Equal(t, enums.WithdrawalStatusProcessing, got.Status)

	f.provider.getErr = &paypal.APIError{Operation: "get_payout", StatusCode: http.StatusNotFound}
	got, err = f.svc.Check(ctx, w.ID, TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusProcessing, got.Status)

	acct := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 500, acct.PendingCents)
}

func TestCheckSkipsWithdrawalWithoutBatch(t *testing.T) {
	f := newFixture(t)
	repo := NewRepository(f.conn)
	w := &models.Withdrawal{UserID: uuid.New(), AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusPending}
	require.NoError(t, repo.Create(context.Background(), w))

	got, err := f.svc.Check(context.Background(), w.ID, TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusPending, got.Status)
	assert.Zero(t, f.provider.gets)
}

func TestCheckForUserWaitsForTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "wes@example.com", 1000, 0)
	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "wes@example.com"})
	require.NoError(t, err)

	_, err = f.svc.CheckForUser(ctx, uuid.New(), w.ID, false)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	f.provider.statuses = []*paypal.Batch{
		{BatchStatus: "PROCESSING", TransactionStatus: "PENDING"},
		{BatchStatus: "SUCCESS", TransactionStatus: "SUCCESS"},
	}
	got, err := f.svc.CheckForUser(ctx, account.UserID, w.ID, true)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusPaid, got.Status)
	assert.Equal(t, 2, f.provider.gets)
}

func TestCheckForUserWaitGivesUpWithLatestState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "xena@example.com", 1000, 0)
	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "xena@example.com"})
	require.NoError(t, err)

	got, err := f.svc.CheckForUser(ctx, account.UserID, w.ID, true)
	require.NoError(t, err)
	assert.Equal(t, enums.WithdrawalStatusProcessing, got.Status)
	assert.Equal(t, 3, f.provider.gets)
}

func TestListForUserAndOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "yuri@example.com", 1000, 0)
	_, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 500, PayoutEmail: "yuri@example.com"})
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, account.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	open, err := f.svc.ListOpen(ctx, uuid.Nil, 10)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	assert.Equal(t, []int64{500, 1000, 2500}, f.svc.Denominations())
}

func TestRequestCashoutConcurrentRequestsOpenOneWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "zoe@example.com", 1000, 0)

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "zoe@example.com"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Truef(t, errors.Is(err, ErrWithdrawalInProgress) || errors.Is(err, ErrInsufficientBalance), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, f.conn.Model(&models.Withdrawal{}).Where("user_id = ?", account.UserID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.Zero(t, got.BalanceCents)
	assert.EqualValues(t, 1000, got.PendingCents)
	assert.Len(t, f.provider.created, 1)
}

func TestCheckFailedRefundsOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, f.conn, "ada@example.com", 1000, 0)

	w, err := f.svc.RequestCashout(ctx, CashoutInput{UserID: account.UserID, AmountCents: 1000, PayoutEmail: "ada@example.com"})
	require.NoError(t, err)

	f.provider.statuses = []*paypal.Batch{{BatchStatus: "SUCCESS", TransactionStatus: "FAILED", ErrorName: "RECEIVER_UNREGISTERED"}}
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Check(ctx, w.ID, TriggerSweep)
		}()
	}
	wg.Wait()

	got := dbtest.ReloadAccount(t, f.conn, account.UserID)
	assert.EqualValues(t, 1000, got.BalanceCents)
	assert.Zero(t, got.PendingCents)

	refunds := 0
	for _, entry := range f.journal(t, w.ID) {
		if entry.Type == enums.LedgerEventTypePayoutRefunded {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abcdef ", 3))
	assert.Equal(t, "héé", truncate("héééé", 3))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, "short", truncate("short", 10))
}

func TestRepositoryListOpenPagesByID(t *testing.T) {
	f := newFixture(t)
	repo := NewRepository(f.conn)
	ctx := context.Background()

	var want []uuid.UUID
	for range 3 {
		w := &models.Withdrawal{UserID: uuid.New(), AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusProcessing}
		require.NoError(t, repo.Create(ctx, w))
		want = append(want, w.ID)
	}
	closed := &models.Withdrawal{UserID: uuid.New(), AmountCents: 500, PayoutEmail: "a@b.co", Status: enums.WithdrawalStatusPaid}
	require.NoError(t, repo.Create(ctx, closed))

	first, err := repo.ListOpen(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	second, err := repo.ListOpen(ctx, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)

	var got []uuid.UUID
	for _, w := range append(first, second...) {
		got = append(got, w.ID)
	}
	assert.ElementsMatch(t, want, got)
	assert.NotContains(t, got, closed.ID)
}
