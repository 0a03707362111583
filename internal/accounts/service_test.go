package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveycash/surveycash-backend/pkg/db/dbtest"
	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestServiceOpenReturnsExistingAccount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	account, err := svc.Open(ctx, OpenAccountInput{UserID: userID, Email: "Gina@Example.com", Username: "gina"})
	require.NoError(t, err)
	assert.Equal(t, "gina@example.com", account.Email)

	require.NoError(t, repo.Credit(ctx, userID, CreditInput{AmountCents: 75}))

	again, err := svc.Open(ctx, OpenAccountInput{UserID: userID, Email: "gina@example.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 75, again.BalanceCents, "second open must not reset counters")
}

func TestServiceOpenValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Open(context.Background(), OpenAccountInput{Email: "x@example.com"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Open(context.Background(), OpenAccountInput{UserID: uuid.New()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestServiceOpenRejectsEmailOwnedByAnotherUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, OpenAccountInput{UserID: uuid.New(), Email: "taken@example.com"})
	require.NoError(t, err)

	_, err = svc.Open(ctx, OpenAccountInput{UserID: uuid.New(), Email: "taken@example.com"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestServiceResolvePrefersUserIDThenEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := svc.Open(ctx, OpenAccountInput{UserID: userID, Email: "hank@example.com"})
	require.NoError(t, err)

	byID, err := svc.Resolve(ctx, userID.String())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, userID, byID.UserID)

	byEmail, err := svc.Resolve(ctx, "HANK@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, userID, byEmail.UserID)

	missing, err := svc.Resolve(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	blank, err := svc.Resolve(ctx, "  ")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestServiceSummaryNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Summary(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServicePlatformStatsNamesTopEarner(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	quiet := uuid.New()
	loud := uuid.New()
	_, err := svc.Open(ctx, OpenAccountInput{UserID: quiet, Email: "quiet@example.com"})
	require.NoError(t, err)
	_, err = svc.Open(ctx, OpenAccountInput{UserID: loud, Email: "loud.person@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.Credit(ctx, loud, CreditInput{AmountCents: 1200, SurveyIncrement: 1}))

	stats, err := svc.PlatformStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.EqualValues(t, 1200, stats.TotalEarnedCents)
	assert.EqualValues(t, 1, stats.TotalCompletedSurveys)
	require.NotNil(t, stats.TopUser)
	assert.Equal(t, "loud.person", stats.TopUser.Name)
	assert.EqualValues(t, 1200, stats.TopUser.EarnedCents)
}
