package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"gorm.io/gorm"
)

// maxBalanceRetries bounds the optimistic-lock retry loop. Contention on a
// single user's balance is rare, so a short budget is enough; callers see
// ErrConcurrencyConflict once it is exhausted.
const maxBalanceRetries = 3

// LedgerService is the credit mutation gate. It is the only component that
// changes balances: every change goes through a version-checked conditional
// update and appends exactly one ledger row in the same transaction.
type LedgerService struct {
	db             *gorm.DB
	initialCredits int
}

// NewLedgerService creates a LedgerService. initialCredits is the signup
// bonus granted to newly registered users (0 disables it).
func NewLedgerService(db *gorm.DB, initialCredits int) *LedgerService {
	return &LedgerService{db: db, initialCredits: initialCredits}
}

// DB exposes the underlying handle for services composing transactions
// around the gate.
func (s *LedgerService) DB() *gorm.DB {
	return s.db
}

// ApplyCreditChange atomically applies a signed credit delta to the user's
// balance and appends the matching ledger row. On failure nothing is
// written.
func (s *LedgerService) ApplyCreditChange(userID uint, delta int, txType, originType string, originID *uint, description string) (*models.Balance, *models.CreditTransaction, error) {
	var (
		balance *models.Balance
		txn     *models.CreditTransaction
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, t, err := s.ApplyCreditChangeIn(tx, userID, delta, txType, originType, originID, description)
		balance, txn = b, t
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return balance, txn, nil
}

// ApplyCreditChangeIn runs the gate inside a caller-provided transaction so
// upstream producers (voucher claims, purchase inserts) commit or roll back
// together with the credit grant.
//
// Protocol: read (credits, version), refuse deltas that would go negative,
// then update conditionally on the version just read. A zero-row update
// means a concurrent writer won; the whole read-compute-update cycle is
// retried up to maxBalanceRetries times.
func (s *LedgerService) ApplyCreditChangeIn(tx *gorm.DB, userID uint, delta int, txType, originType string, originID *uint, description string) (*models.Balance, *models.CreditTransaction, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		var balance models.Balance
		if err := tx.Where("user_id = ?", userID).First(&balance).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrUserNotFound
			}
			return nil, nil, err
		}

		candidate := balance.Credits + delta
		if delta < 0 && candidate < 0 {
			return nil, nil, ErrInsufficientBalance
		}

		result := tx.Model(&models.Balance{}).
			Where("user_id = ? AND version = ?", userID, balance.Version).
			Updates(map[string]interface{}{
				"credits": candidate,
				"version": balance.Version + 1,
			})
		if result.Error != nil {
			return nil, nil, result.Error
		}
		if result.RowsAffected == 0 {
			utils.LogDebug("Balance version conflict for user %d (attempt %d), retrying", userID, attempt+1)
			continue
		}

		txn := models.CreditTransaction{
			UserID:       userID,
			Type:         txType,
			Credits:      delta,
			BalanceAfter: candidate,
			OriginType:   originType,
			OriginID:     originID,
			Description:  description,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return nil, nil, err
		}

		if err := s.updateUserTotals(tx, userID, delta); err != nil {
			return nil, nil, err
		}

		balance.Credits = candidate
		balance.Version++
		return &balance, &txn, nil
	}

	return nil, nil, ErrConcurrencyConflict
}

// updateUserTotals maintains the denormalized purchase/consumption totals
// on the user row. Reporting only, never authoritative.
func (s *LedgerService) updateUserTotals(tx *gorm.DB, userID uint, delta int) error {
	switch {
	case delta > 0:
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("total_credits_purchased", gorm.Expr("total_credits_purchased + ?", delta)).Error
	case delta < 0:
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("total_credits_consumed", gorm.Expr("total_credits_consumed + ?", -delta)).Error
	}
	return nil
}

// RegisterUser creates a user with a zero balance at version 1 and grants
// the configured signup bonus through the gate. If the installation id is
// already registered the existing user is returned.
func (s *LedgerService) RegisterUser(installationID string) (*models.User, error) {
	var existing models.User
	err := s.db.Where("installation_id = ?", installationID).First(&existing).Error
	if err == nil {
		s.touchLastActive(&existing)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var user models.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		user = models.User{
			InstallationID: installationID,
			LastActiveAt:   time.Now().UTC(),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		balance := models.Balance{
			UserID:  user.ID,
			Credits: 0,
			Version: 1,
		}
		if err := tx.Create(&balance).Error; err != nil {
			return err
		}

		if s.initialCredits > 0 {
			_, _, err := s.ApplyCreditChangeIn(tx, user.ID, s.initialCredits,
				models.TransactionTypeEarn, models.OriginTypeSystem, nil, "Initial signup bonus")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent registration may have won the unique-constraint race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if lookupErr := s.db.Where("installation_id = ?", installationID).First(&user).Error; lookupErr == nil {
				return &user, nil
			}
		}
		return nil, err
	}

	utils.LogInfo("Registered user %d for installation %s", user.ID, installationID)
	return &user, nil
}

// GetOrCreateUser fetches a user by installation id, registering them on
// first contact. A provided email is bound best-effort: it is skipped
// silently when another account already holds it.
func (s *LedgerService) GetOrCreateUser(installationID string, email *string) (*models.User, error) {
	user, err := s.RegisterUser(installationID)
	if err != nil {
		return nil, err
	}

	if email != nil && *email != "" && (user.Email == nil || *user.Email != *email) {
		var count int64
		if err := s.db.Model(&models.User{}).Where("email = ?", *email).Count(&count).Error; err == nil && count == 0 {
			if err := s.db.Model(user).Update("email", *email).Error; err != nil {
				utils.LogError("Failed to bind email for user %d: %v", user.ID, err)
			} else {
				user.Email = email
			}
		}
	}

	return user, nil
}

// GetUserByInstallation fetches a user without creating them.
func (s *LedgerService) GetUserByInstallation(installationID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("installation_id = ?", installationID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.touchLastActive(&user)
	return &user, nil
}

func (s *LedgerService) touchLastActive(user *models.User) {
	now := time.Now().UTC()
	if err := s.db.Model(user).UpdateColumn("last_active_at", now).Error; err != nil {
		utils.LogDebug("Failed to touch last active for user %d: %v", user.ID, err)
		return
	}
	user.LastActiveAt = now
}

// GetBalance returns the user's current balance record.
func (s *LedgerService) GetBalance(userID uint) (*models.Balance, error) {
	var balance models.Balance
	if err := s.db.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// ListTransactions returns a page of the user's ledger, newest first,
// along with the total row count.
func (s *LedgerService) ListTransactions(userID uint, limit, offset int) ([]models.CreditTransaction, int64, error) {
	var total int64
	if err := s.db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.CreditTransaction
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// UserStats summarizes a user's account for reporting.
type UserStats struct {
	UserID           uint      `json:"user_id"`
	InstallationID   string    `json:"installation_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActiveAt     time.Time `json:"last_active_at"`
	CurrentBalance   int       `json:"current_balance"`
	TotalPurchased   int       `json:"total_purchased"`
	TotalConsumed    int       `json:"total_consumed"`
	TransactionCount int64     `json:"transaction_count"`
}

// GetUserStats returns the user's account summary.
func (s *LedgerService) GetUserStats(userID uint) (*UserStats, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	balance, err := s.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}

	return &UserStats{
		UserID:           user.ID,
		InstallationID:   user.InstallationID,
		CreatedAt:        user.CreatedAt,
		LastActiveAt:     user.LastActiveAt,
		CurrentBalance:   balance.Credits,
		TotalPurchased:   user.TotalCreditsPurchased,
		TotalConsumed:    user.TotalCreditsConsumed,
		TransactionCount: count,
	}, nil
}

// ConsumeCredits spends credits for an application action. The gate
// enforces non-negativity, so overdrafts fail with ErrInsufficientBalance
// and leave no trace in the ledger.
func (s *LedgerService) ConsumeCredits(userID uint, amount int, reference, description string) (*models.Balance, *models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	if description == "" {
		description = fmt.Sprintf("Consumed %d credits: %s", amount, reference)
	}
	return s.ApplyCreditChange(userID, -amount, models.TransactionTypeConsume,
		models.OriginTypeUsage, nil, description)
}

// AdminAdjustBalance applies a manual correction on behalf of an admin.
// The acting admin and their justification are embedded in the ledger row
// description for audit.
func (s *LedgerService) AdminAdjustBalance(userID uint, delta int, reason string, adminID uint) (*models.Balance, *models.CreditTransaction, error) {
	description := fmt.Sprintf("Admin adjustment: %s (by admin ID: %d)", reason, adminID)
	originID := adminID
	return s.ApplyCreditChange(userID, delta, models.TransactionTypeAdminAdjust,
		models.OriginTypeAdmin, &originID, description)
}
