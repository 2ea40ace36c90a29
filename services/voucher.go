package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"gorm.io/gorm"
)

// maxGenerateRetries bounds regeneration when a freshly generated batch
// collides with codes already in the database.
const maxGenerateRetries = 3

// VoucherService manages the redeem voucher lifecycle: batch generation,
// claiming, expiry and administrative disabling. Claims use the same
// conditional-update discipline as the balance gate, so two concurrent
// claims on one code can never both succeed.
type VoucherService struct {
	db         *gorm.DB
	ledger     *LedgerService
	dailyLimit int
	now        func() time.Time
}

// NewVoucherService creates a VoucherService. dailyLimit caps successful
// redemptions per user per UTC day.
func NewVoucherService(db *gorm.DB, ledger *LedgerService, dailyLimit int) *VoucherService {
	return &VoucherService{
		db:         db,
		ledger:     ledger,
		dailyLimit: dailyLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCode canonicalizes user-entered codes: trimmed, upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RedeemResult is the successful outcome of a voucher claim.
type RedeemResult struct {
	Code           string `json:"code"`
	CreditsGranted int    `json:"credits_granted"`
	NewBalance     int    `json:"new_balance"`
	TransactionID  uint   `json:"transaction_id"`
}

// Redeem validates and claims a voucher code for the user, crediting its
// value through the mutation gate. The claim (active -> used) and the
// credit grant commit in one transaction: a voucher is never marked used
// without the matching credit.
func (s *VoucherService) Redeem(code string, userID uint) (*RedeemResult, error) {
	normalized := NormalizeCode(code)

	var voucher models.RedeemVoucher
	if err := s.db.Where("code = ?", normalized).First(&voucher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	if err := s.checkRedeemable(&voucher); err != nil {
		return nil, err
	}

	used, err := s.redeemedToday(userID)
	if err != nil {
		return nil, err
	}
	if used >= int64(s.dailyLimit) {
		utils.LogInfo("User %d hit daily redeem limit (%d)", userID, s.dailyLimit)
		return nil, ErrThrottleExceeded
	}

	now := s.now()
	var result RedeemResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.RedeemVoucher{}).
			Where("id = ? AND status = ?", voucher.ID, models.VoucherStatusActive).
			Updates(map[string]interface{}{
				"status":  models.VoucherStatusUsed,
				"used_by": userID,
				"used_at": now,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			// A concurrent claim won. Report the state it left behind.
			var current models.RedeemVoucher
			if err := tx.First(&current, voucher.ID).Error; err != nil {
				return err
			}
			return &InvalidCodeStateError{State: current.Status}
		}

		balance, txn, err := s.ledger.ApplyCreditChangeIn(tx, userID, voucher.Credits,
			models.TransactionTypeEarn, models.OriginTypeVoucher, &voucher.ID,
			fmt.Sprintf("Redeemed code: %s", normalized))
		if err != nil {
			return err
		}

		result = RedeemResult{
			Code:           normalized,
			CreditsGranted: voucher.Credits,
			NewBalance:     balance.Credits,
			TransactionID:  txn.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("User %d redeemed code %s for %d credits", userID, normalized, voucher.Credits)
	return &result, nil
}

// checkRedeemable evaluates terminal states in priority order: used,
// disabled, then expiry. Expiry is lazy: a past expires_at transitions the
// row to expired on read.
func (s *VoucherService) checkRedeemable(voucher *models.RedeemVoucher) error {
	switch voucher.Status {
	case models.VoucherStatusUsed:
		return &InvalidCodeStateError{State: models.VoucherStatusUsed}
	case models.VoucherStatusDisabled:
		return &InvalidCodeStateError{State: models.VoucherStatusDisabled}
	case models.VoucherStatusExpired:
		return &InvalidCodeStateError{State: models.VoucherStatusExpired}
	}

	if voucher.ExpiresAt != nil && voucher.ExpiresAt.Before(s.now()) {
		// Conditional so a concurrent claim or disable is not clobbered.
		err := s.db.Model(&models.RedeemVoucher{}).
			Where("id = ? AND status = ?", voucher.ID, models.VoucherStatusActive).
			Update("status", models.VoucherStatusExpired).Error
		if err != nil {
			utils.LogError("Failed to mark voucher %d expired: %v", voucher.ID, err)
		}
		return &InvalidCodeStateError{State: models.VoucherStatusExpired}
	}

	return nil
}

// redeemedToday counts the user's successful redemptions in the current
// UTC day. It reads the voucher table, not the ledger, so a rolled-back
// claim never counts against the cap.
func (s *VoucherService) redeemedToday(userID uint) (int64, error) {
	dayStart := s.now().Truncate(24 * time.Hour)

	var count int64
	err := s.db.Model(&models.RedeemVoucher{}).
		Where("used_by = ? AND status = ? AND used_at >= ?", userID, models.VoucherStatusUsed, dayStart).
		Count(&count).Error
	return count, err
}

// VoucherInfo returns a voucher's current state without claiming it. The
// returned error carries the same taxonomy Redeem uses for unusable codes.
func (s *VoucherService) VoucherInfo(code string) (*models.RedeemVoucher, error) {
	normalized := NormalizeCode(code)

	var voucher models.RedeemVoucher
	if err := s.db.Where("code = ?", normalized).First(&voucher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	if err := s.checkRedeemable(&voucher); err != nil {
		return &voucher, err
	}
	return &voucher, nil
}

// GenerateVouchers creates a batch of unique voucher codes, each worth the
// given credits. expiresInDays of 0 means the codes never expire. Returns
// the generated codes and the batch id.
func (s *VoucherService) GenerateVouchers(count, credits, expiresInDays int, batchName string) ([]string, string, error) {
	if count < 1 || count > 10000 {
		return nil, "", fmt.Errorf("voucher count must be between 1 and 10000, got %d", count)
	}
	if credits < 1 {
		return nil, "", fmt.Errorf("voucher credits must be positive, got %d", credits)
	}

	batchID := batchName
	if batchID == "" {
		batchID = utils.NewBatchID()
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := s.now().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	for attempt := 0; attempt < maxGenerateRetries; attempt++ {
		codes, err := generateUniqueCodes(count)
		if err != nil {
			return nil, "", err
		}

		// Regenerate the whole batch if anything collides with existing
		// rows. Collisions over a 31-char alphabet at length 16 are
		// practically impossible, so one pass is the expected case.
		var existing int64
		if err := s.db.Model(&models.RedeemVoucher{}).Where("code IN ?", codes).Count(&existing).Error; err != nil {
			return nil, "", err
		}
		if existing > 0 {
			utils.LogError("Generated voucher batch collided with %d existing codes, regenerating", existing)
			continue
		}

		vouchers := make([]models.RedeemVoucher, 0, count)
		for _, code := range codes {
			vouchers = append(vouchers, models.RedeemVoucher{
				Code:      code,
				Credits:   credits,
				Status:    models.VoucherStatusActive,
				ExpiresAt: expiresAt,
				BatchID:   batchID,
			})
		}

		if err := s.db.CreateInBatches(&vouchers, 500).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, "", err
		}

		utils.LogInfo("Generated %d vouchers worth %d credits in batch %s", count, credits, batchID)
		return codes, batchID, nil
	}

	return nil, "", fmt.Errorf("failed to generate %d unique voucher codes", count)
}

func generateUniqueCodes(count int) ([]string, error) {
	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	maxAttempts := count * 10

	for attempt := 0; len(codes) < count && attempt < maxAttempts; attempt++ {
		code, err := utils.GenerateVoucherCode(utils.DefaultVoucherCodeLength)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	if len(codes) < count {
		return nil, fmt.Errorf("could not generate %d unique codes", count)
	}
	return codes, nil
}

// ListVouchers returns a page of vouchers, optionally filtered by batch
// and status, newest first.
func (s *VoucherService) ListVouchers(batchID, status string, limit, offset int) ([]models.RedeemVoucher, int64, error) {
	query := s.db.Model(&models.RedeemVoucher{})
	if batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var vouchers []models.RedeemVoucher
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}
	return vouchers, total, nil
}

// BatchStats summarizes a voucher batch by status.
type BatchStats struct {
	BatchID       string  `json:"batch_id"`
	TotalCodes    int64   `json:"total_codes"`
	ActiveCodes   int64   `json:"active_codes"`
	UsedCodes     int64   `json:"used_codes"`
	ExpiredCodes  int64   `json:"expired_codes"`
	DisabledCodes int64   `json:"disabled_codes"`
	UsageRate     float64 `json:"usage_rate"`
}

// GetBatchStats returns per-status counts for a batch.
func (s *VoucherService) GetBatchStats(batchID string) (*BatchStats, error) {
	stats := &BatchStats{BatchID: batchID}

	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := s.db.Model(&models.RedeemVoucher{}).
		Select("status, count(*) as count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		stats.TotalCodes += row.Count
		switch row.Status {
		case models.VoucherStatusActive:
			stats.ActiveCodes = row.Count
		case models.VoucherStatusUsed:
			stats.UsedCodes = row.Count
		case models.VoucherStatusExpired:
			stats.ExpiredCodes = row.Count
		case models.VoucherStatusDisabled:
			stats.DisabledCodes = row.Count
		}
	}
	if stats.TotalCodes > 0 {
		stats.UsageRate = float64(stats.UsedCodes) / float64(stats.TotalCodes) * 100
	}
	return stats, nil
}

// DisableVouchers disables codes administratively. Active and expired
// codes can be disabled; used codes are immutable. Returns how many rows
// changed.
func (s *VoucherService) DisableVouchers(ids []uint) (int64, error) {
	result := s.db.Model(&models.RedeemVoucher{}).
		Where("id IN ? AND status IN ?", ids, []string{models.VoucherStatusActive, models.VoucherStatusExpired}).
		Update("status", models.VoucherStatusDisabled)
	if result.Error != nil {
		return 0, result.Error
	}
	utils.LogInfo("Disabled %d of %d requested vouchers", result.RowsAffected, len(ids))
	return result.RowsAffected, nil
}

// ExpireDueVouchers sweeps active codes whose expiry has passed. Expiry is
// also applied lazily on read; the sweep keeps batch stats honest.
func (s *VoucherService) ExpireDueVouchers() (int64, error) {
	result := s.db.Model(&models.RedeemVoucher{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.VoucherStatusActive, s.now()).
		Update("status", models.VoucherStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
