// Package dbtest opens isolated in-memory SQLite databases carrying the ledger schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/surveycash/surveycash-backend/pkg/db/models"
)

// Open returns a fresh database per call. A single connection keeps the
// shared-cache memory database alive and serializes writers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.Account{},
		&models.RewardEvent{},
		&models.Withdrawal{},
		&models.LedgerEvent{},
	))
	return conn
}

// SeedAccount inserts an account with the given balance and pending amounts.
func SeedAccount(t testing.TB, conn *gorm.DB, email string, balanceCents, pendingCents int64) models.Account {
	t.Helper()
	account := models.Account{
		UserID:       uuid.New(),
		Email:        email,
		BalanceCents: balanceCents,
		PendingCents: pendingCents,
	}
	require.NoError(t, conn.Create(&account).Error)
	return account
}

// ReloadAccount reads the current row for userID.
func ReloadAccount(t testing.TB, conn *gorm.DB, userID uuid.UUID) models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, conn.First(&account, "user_id = ?", userID).Error)
	return account
}
