package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/models"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database so tests cannot
// interfere with each other. A single connection keeps concurrent test
// writers serialized at the driver level.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.MigrateModels(db))
	return db
}

func newTestLedger(t *testing.T, db *gorm.DB, initialCredits int) *LedgerService {
	t.Helper()
	return NewLedgerService(db, initialCredits)
}

func registerTestUser(t *testing.T, ledger *LedgerService, installationID string) *models.User {
	t.Helper()
	user, err := ledger.RegisterUser(installationID)
	require.NoError(t, err)
	return user
}

func countTransactions(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

// sumDeltas adds up every ledger delta for a user. The ledger invariant
// says this always equals the current balance.
func sumDeltas(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var txns []models.CreditTransaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&txns).Error)
	sum := 0
	for _, txn := range txns {
		sum += txn.Credits
	}
	return sum
}
