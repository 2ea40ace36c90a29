package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestVoucherService(t *testing.T, db *gorm.DB, ledger *LedgerService, dailyLimit int) *VoucherService {
	t.Helper()
	return NewVoucherService(db, ledger, dailyLimit)
}

func createTestVoucher(t *testing.T, db *gorm.DB, code string, credits int, status string, expiresAt *time.Time) *models.RedeemVoucher {
	t.Helper()
	voucher := &models.RedeemVoucher{
		Code:      code,
		Credits:   credits,
		Status:    status,
		ExpiresAt: expiresAt,
		BatchID:   "TESTBATCH",
	}
	require.NoError(t, db.Create(voucher).Error)
	return voucher
}

func TestRedeemCreditsNewUser(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	user := registerTestUser(t, ledger, "install-redeem")
	createTestVoucher(t, db, "REDEEMTEN2345678", 10, models.VoucherStatusActive, nil)

	result, err := vouchers.Redeem("REDEEMTEN2345678", user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, result.CreditsGranted)
	assert.Equal(t, 10, result.NewBalance)

	var txn models.CreditTransaction
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&txn).Error)
	assert.Equal(t, models.TransactionTypeEarn, txn.Type)
	assert.Equal(t, 10, txn.Credits)
	assert.Equal(t, 10, txn.BalanceAfter)
	assert.Equal(t, models.OriginTypeVoucher, txn.OriginType)

	var claimed models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", "REDEEMTEN2345678").First(&claimed).Error)
	assert.Equal(t, models.VoucherStatusUsed, claimed.Status)
	require.NotNil(t, claimed.UsedBy)
	assert.Equal(t, user.ID, *claimed.UsedBy)
	assert.NotNil(t, claimed.UsedAt)
}

func TestRedeemNormalizesCode(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	user := registerTestUser(t, ledger, "install-normalize")
	createTestVoucher(t, db, "MIXEDCASE2345678", 5, models.VoucherStatusActive, nil)

	result, err := vouchers.Redeem("  mixedcase2345678 ", user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, result.CreditsGranted)
}

func TestRedeemUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	user := registerTestUser(t, ledger, "install-unknown")

	_, err := vouchers.Redeem("NOSUCHCODE234567", user.ID)
	require.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestRedeemTerminalStates(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	user := registerTestUser(t, ledger, "install-terminal")

	createTestVoucher(t, db, "USEDCODE23456789", 5, models.VoucherStatusUsed, nil)
	createTestVoucher(t, db, "DEADCODE23456789", 5, models.VoucherStatusDisabled, nil)
	createTestVoucher(t, db, "GONECODE23456789", 5, models.VoucherStatusExpired, nil)

	for code, state := range map[string]string{
		"USEDCODE23456789": models.VoucherStatusUsed,
		"DEADCODE23456789": models.VoucherStatusDisabled,
		"GONECODE23456789": models.VoucherStatusExpired,
	} {
		_, err := vouchers.Redeem(code, user.ID)
		stateErr, ok := AsInvalidCodeState(err)
		require.True(t, ok, "expected InvalidCodeStateError for %s", code)
		assert.Equal(t, state, stateErr.State)
	}

	balance, err := ledger.GetBalance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Credits)
}

func TestRedeemLazyExpiry(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	user := registerTestUser(t, ledger, "install-expiry")

	past := time.Now().UTC().Add(-time.Hour)
	createTestVoucher(t, db, "LATECODE23456789", 5, models.VoucherStatusActive, &past)

	_, err := vouchers.Redeem("LATECODE23456789", user.ID)
	stateErr, ok := AsInvalidCodeState(err)
	require.True(t, ok)
	assert.Equal(t, models.VoucherStatusExpired, stateErr.State)

	// The read transitions the row so later reads see expired directly.
	var reloaded models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", "LATECODE23456789").First(&reloaded).Error)
	assert.Equal(t, models.VoucherStatusExpired, reloaded.Status)
}

func TestRedeemDailyThrottle(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 2)
	user := registerTestUser(t, ledger, "install-throttle")

	createTestVoucher(t, db, "THROTTLE23456781", 1, models.VoucherStatusActive, nil)
	createTestVoucher(t, db, "THROTTLE23456782", 1, models.VoucherStatusActive, nil)
	createTestVoucher(t, db, "THROTTLE23456783", 1, models.VoucherStatusActive, nil)

	_, err := vouchers.Redeem("THROTTLE23456781", user.ID)
	require.NoError(t, err)
	_, err = vouchers.Redeem("THROTTLE23456782", user.ID)
	require.NoError(t, err)

	_, err = vouchers.Redeem("THROTTLE23456783", user.ID)
	require.ErrorIs(t, err, ErrThrottleExceeded)

	// The throttled code stays claimable by others.
	var untouched models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", "THROTTLE23456783").First(&untouched).Error)
	assert.Equal(t, models.VoucherStatusActive, untouched.Status)
}

func TestRedeemThrottleResetsNextDay(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 1)
	user := registerTestUser(t, ledger, "install-nextday")

	createTestVoucher(t, db, "TODAYCODE2345678", 1, models.VoucherStatusActive, nil)
	createTestVoucher(t, db, "TMRWCODE23456789", 1, models.VoucherStatusActive, nil)

	_, err := vouchers.Redeem("TODAYCODE2345678", user.ID)
	require.NoError(t, err)
	_, err = vouchers.Redeem("TMRWCODE23456789", user.ID)
	require.ErrorIs(t, err, ErrThrottleExceeded)

	// Advance the clock past UTC midnight.
	vouchers.now = func() time.Time { return time.Now().UTC().Add(24 * time.Hour) }
	_, err = vouchers.Redeem("TMRWCODE23456789", user.ID)
	require.NoError(t, err)
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 100)
	createTestVoucher(t, db, "CONTESTED2345678", 10, models.VoucherStatusActive, nil)

	const claimants = 8
	users := make([]*models.User, claimants)
	for i := range users {
		users[i] = registerTestUser(t, ledger, "install-race-"+strings.Repeat("x", i+1))
	}

	var wg sync.WaitGroup
	results := make(chan error, claimants)
	for _, user := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := vouchers.Redeem("CONTESTED2345678", userID)
			results <- err
		}(user.ID)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		stateErr, ok := AsInvalidCodeState(err)
		require.True(t, ok, "losers must see an invalid-state failure, got %v", err)
		assert.Equal(t, models.VoucherStatusUsed, stateErr.State)
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, claimants-1, losses)

	var txnCount int64
	require.NoError(t, db.Model(&models.CreditTransaction{}).Count(&txnCount).Error)
	assert.Equal(t, int64(1), txnCount, "exactly one claim may credit")
}

func TestRedeemRollsBackClaimWhenCreditFails(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	createTestVoucher(t, db, "ORPHANED23456789", 5, models.VoucherStatusActive, nil)

	// A user row without a balance record makes the gate fail after the
	// claim succeeded; the claim must roll back with it.
	broken := models.User{InstallationID: "install-broken", LastActiveAt: time.Now().UTC()}
	require.NoError(t, db.Create(&broken).Error)

	_, err := vouchers.Redeem("ORPHANED23456789", broken.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	var voucher models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", "ORPHANED23456789").First(&voucher).Error)
	assert.Equal(t, models.VoucherStatusActive, voucher.Status, "claim must not persist without the credit")
	assert.Nil(t, voucher.UsedBy)
}

func TestGenerateVouchersBatch(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)

	codes, batchID, err := vouchers.GenerateVouchers(50, 20, 30, "")
	require.NoError(t, err)
	require.Len(t, codes, 50)
	assert.NotEmpty(t, batchID)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		assert.Len(t, code, utils.DefaultVoucherCodeLength)
		for _, ch := range code {
			assert.Contains(t, utils.VoucherCodeChars, string(ch))
		}
		_, dup := seen[code]
		assert.False(t, dup, "codes must be unique")
		seen[code] = struct{}{}
	}

	stats, err := vouchers.GetBatchStats(batchID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.TotalCodes)
	assert.Equal(t, int64(50), stats.ActiveCodes)

	var sample models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", codes[0]).First(&sample).Error)
	assert.Equal(t, 20, sample.Credits)
	require.NotNil(t, sample.ExpiresAt)
	assert.True(t, sample.ExpiresAt.After(time.Now()))
}

func TestGenerateVouchersValidation(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)

	_, _, err := vouchers.GenerateVouchers(0, 10, 0, "")
	require.Error(t, err)
	_, _, err = vouchers.GenerateVouchers(5, 0, 0, "")
	require.Error(t, err)
}

func TestDisableVouchersSkipsUsed(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)

	active := createTestVoucher(t, db, "DISABLEME2345678", 5, models.VoucherStatusActive, nil)
	expired := createTestVoucher(t, db, "STALECODE2345678", 5, models.VoucherStatusExpired, nil)
	used := createTestVoucher(t, db, "KEEPCODE23456789", 5, models.VoucherStatusUsed, nil)

	disabled, err := vouchers.DisableVouchers([]uint{active.ID, expired.ID, used.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), disabled)

	var kept models.RedeemVoucher
	require.NoError(t, db.First(&kept, used.ID).Error)
	assert.Equal(t, models.VoucherStatusUsed, kept.Status, "used codes are immutable")
}

func TestExpireDueVouchersSweep(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	createTestVoucher(t, db, "SWEEPME234567891", 5, models.VoucherStatusActive, &past)
	createTestVoucher(t, db, "SWEEPME234567892", 5, models.VoucherStatusActive, &future)
	createTestVoucher(t, db, "SWEEPME234567893", 5, models.VoucherStatusActive, nil)

	expired, err := vouchers.ExpireDueVouchers()
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)
}

func TestVoucherInfoDoesNotClaim(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)
	createTestVoucher(t, db, "PEEKCODE23456789", 15, models.VoucherStatusActive, nil)

	voucher, err := vouchers.VoucherInfo("peekcode23456789")
	require.NoError(t, err)
	assert.Equal(t, 15, voucher.Credits)

	var reloaded models.RedeemVoucher
	require.NoError(t, db.Where("code = ?", "PEEKCODE23456789").First(&reloaded).Error)
	assert.Equal(t, models.VoucherStatusActive, reloaded.Status)
}

func TestListVouchersFilters(t *testing.T) {
	db := setupTestDB(t)
	ledger := newTestLedger(t, db, 0)
	vouchers := newTestVoucherService(t, db, ledger, 5)

	createTestVoucher(t, db, "FILTER1234567891", 5, models.VoucherStatusActive, nil)
	createTestVoucher(t, db, "FILTER1234567892", 5, models.VoucherStatusUsed, nil)

	active, total, err := vouchers.ListVouchers("TESTBATCH", models.VoucherStatusActive, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, active, 1)
	assert.Equal(t, "FILTER1234567891", active[0].Code)
}
