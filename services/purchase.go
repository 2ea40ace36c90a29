package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"gorm.io/gorm"
)

// Provider-side purchase states, matching the Google Play Developer API.
const (
	PurchaseStatePurchased = 0
	PurchaseStateCanceled  = 1

	ConsumptionStateNotConsumed = 0
	ConsumptionStateConsumed    = 1
)

// ReceiptVerification is the provider's answer for a receipt token.
type ReceiptVerification struct {
	OrderID          string
	PurchaseState    int64
	ConsumptionState int64
	PriceMicros      int64
	Currency         string
}

// ReceiptVerifier confirms purchases with the external payment provider.
type ReceiptVerifier interface {
	// Available reports whether the provider client is configured.
	Available() bool
	// VerifyProduct fetches the provider's view of a receipt token.
	VerifyProduct(ctx context.Context, productID, receiptToken string) (*ReceiptVerification, error)
	// ConsumeProduct marks the receipt consumed on the provider's side.
	ConsumeProduct(ctx context.Context, productID, receiptToken string) error
}

// productCatalog maps store product ids to credit amounts. Unknown ids
// fall back to a minimal grant instead of failing, so a catalog drift
// never loses a real payment.
var productCatalog = map[string]int{
	"com.arcanelabs.arcana.credits_5":   5,
	"com.arcanelabs.arcana.credits_10":  10,
	"com.arcanelabs.arcana.credits_20":  20,
	"com.arcanelabs.arcana.credits_50":  50,
	"com.arcanelabs.arcana.credits_100": 100,
}

const fallbackProductCredits = 1

// PurchaseService verifies external purchases and credits users exactly
// once per receipt token. The token's uniqueness constraint is the
// backstop for verification calls racing past the initial existence check.
type PurchaseService struct {
	db       *gorm.DB
	ledger   *LedgerService
	verifier ReceiptVerifier
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(db *gorm.DB, ledger *LedgerService, verifier ReceiptVerifier) *PurchaseService {
	return &PurchaseService{db: db, ledger: ledger, verifier: verifier}
}

// PurchaseResult is the outcome of a purchase verification. Replays of an
// already-processed receipt return the original result with
// AlreadyProcessed set.
type PurchaseResult struct {
	OrderID          string `json:"order_id"`
	CreditsAwarded   int    `json:"credits_awarded"`
	NewBalance       int    `json:"new_balance"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// VerifyPurchase confirms a receipt with the provider and credits the user
// exactly once, no matter how often it is called with the same token.
//
// The provider decision always comes back before any local write; on
// acceptance the purchase row and the credit grant commit in one
// transaction.
func (s *PurchaseService) VerifyPurchase(ctx context.Context, installationID, productID, receiptToken, providerOrderID string) (*PurchaseResult, error) {
	if existing, err := s.findProcessed(receiptToken); err != nil {
		return nil, err
	} else if existing != nil {
		utils.LogInfo("Receipt token replay for order %s, returning recorded result", existing.OrderID)
		return s.recordedResult(existing)
	}

	if s.verifier == nil || !s.verifier.Available() {
		return nil, ErrProviderUnavailable
	}

	verification, err := s.verifier.VerifyProduct(ctx, productID, receiptToken)
	if err != nil {
		utils.LogError("Provider verification failed for product %s: %v", productID, err)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if verification.PurchaseState != PurchaseStatePurchased {
		return nil, fmt.Errorf("%w: purchase not in purchased state (%d)", ErrVerificationFailed, verification.PurchaseState)
	}
	if verification.ConsumptionState == ConsumptionStateConsumed {
		return nil, fmt.Errorf("%w: receipt already consumed by provider", ErrVerificationFailed)
	}

	user, err := s.ledger.GetOrCreateUser(installationID, nil)
	if err != nil {
		return nil, err
	}

	orderID := resolveOrderID(providerOrderID, verification.OrderID, receiptToken)
	credits := creditsForProduct(productID)

	now := time.Now().UTC()
	var result PurchaseResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		purchase := models.Purchase{
			OrderID:      orderID,
			Platform:     models.PlatformGooglePlay,
			UserID:       user.ID,
			ProductID:    productID,
			Credits:      credits,
			AmountMicros: verification.PriceMicros,
			Currency:     verification.Currency,
			Status:       models.PurchaseStatusCompleted,
			ReceiptToken: receiptToken,
			CompletedAt:  &now,
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}

		balance, _, err := s.ledger.ApplyCreditChangeIn(tx, user.ID, credits,
			models.TransactionTypeEarn, models.OriginTypePurchase, &purchase.ID,
			fmt.Sprintf("Google Play purchase: %s", productID))
		if err != nil {
			return err
		}

		result = PurchaseResult{
			OrderID:        orderID,
			CreditsAwarded: credits,
			NewBalance:     balance.Credits,
		}
		return nil
	})
	if err != nil {
		// Two verifications raced past the existence check: the loser's
		// insert hits the receipt-token uniqueness constraint. Resolve it
		// as "already processed", not as an error.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := s.findProcessed(receiptToken); lookupErr == nil && existing != nil {
				return s.recordedResult(existing)
			}
		}
		return nil, err
	}

	utils.LogInfo("Processed purchase orderId=%s productId=%s credits=%d installation=%s token=%s",
		orderID, productID, credits, installationID, truncateToken(receiptToken))
	return &result, nil
}

// findProcessed returns the purchase previously recorded for a receipt
// token, or nil if the token is unseen.
func (s *PurchaseService) findProcessed(receiptToken string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.Where("receipt_token = ?", receiptToken).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// recordedResult rebuilds the original success payload for a replayed
// receipt: same order id and credits, and the balance the grant produced.
func (s *PurchaseService) recordedResult(purchase *models.Purchase) (*PurchaseResult, error) {
	result := &PurchaseResult{
		OrderID:          purchase.OrderID,
		CreditsAwarded:   purchase.Credits,
		AlreadyProcessed: true,
	}

	var txn models.CreditTransaction
	err := s.db.Where("origin_type = ? AND origin_id = ?", models.OriginTypePurchase, purchase.ID).
		First(&txn).Error
	if err == nil {
		result.NewBalance = txn.BalanceAfter
		return result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(purchase.UserID)
	if err != nil {
		return nil, err
	}
	result.NewBalance = balance.Credits
	return result, nil
}

// ConsumePurchase notifies the provider that the receipt was consumed and
// records that on the purchase row. Strictly post-commit and best-effort:
// a failure never unwinds the credit grant, it only reports consumed=false
// so the client retries later.
func (s *PurchaseService) ConsumePurchase(ctx context.Context, productID, receiptToken string) (bool, error) {
	purchase, err := s.findProcessed(receiptToken)
	if err != nil {
		return false, err
	}
	if purchase == nil {
		return false, ErrPurchaseNotFound
	}
	if purchase.Status == models.PurchaseStatusConsumed {
		return true, nil
	}

	if s.verifier == nil || !s.verifier.Available() {
		return false, ErrProviderUnavailable
	}

	if err := s.verifier.ConsumeProduct(ctx, productID, receiptToken); err != nil {
		utils.LogError("Failed to consume purchase %s with provider: %v", purchase.OrderID, err)
		return false, nil
	}

	if err := s.db.Model(purchase).Update("status", models.PurchaseStatusConsumed).Error; err != nil {
		utils.LogError("Consumed purchase %s at provider but failed to record it: %v", purchase.OrderID, err)
		return false, nil
	}

	utils.LogInfo("Consumed purchase %s", purchase.OrderID)
	return true, nil
}

// ListPurchases returns a page of purchases, newest first, optionally
// filtered by user.
func (s *PurchaseService) ListPurchases(userID uint, limit, offset int) ([]models.Purchase, int64, error) {
	query := s.db.Model(&models.Purchase{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var purchases []models.Purchase
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&purchases).Error; err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

// resolveOrderID prefers an order id supplied by the caller, then the one
// the provider reported, then a deterministic fallback derived from the
// receipt token so retries resolve to the same id.
func resolveOrderID(fromCaller, fromProvider, receiptToken string) string {
	if fromCaller != "" {
		return fromCaller
	}
	if fromProvider != "" {
		return fromProvider
	}
	digest := sha256.Sum256([]byte(receiptToken))
	orderID := fmt.Sprintf("gp_%x", digest[:6])
	utils.LogInfo("Purchase without provider order id, using fallback %s for token %s", orderID, truncateToken(receiptToken))
	return orderID
}

func creditsForProduct(productID string) int {
	if credits, ok := productCatalog[productID]; ok {
		return credits
	}
	utils.LogError("Unknown product id %s, granting minimal %d credits", productID, fallbackProductCredits)
	return fallbackProductCredits
}

func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
