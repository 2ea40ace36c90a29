package controllers

import (
	"errors"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/services"
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	ledgerService   *services.LedgerService
	voucherService  *services.VoucherService
	purchaseService *services.PurchaseService
)

// InitControllers wires the controller layer to the service instances.
// Called once from main and from the handler tests.
func InitControllers(db *gorm.DB, cfg *config.Config, verifier services.ReceiptVerifier) {
	ledgerService = services.NewLedgerService(db, cfg.InitialCredits)
	voucherService = services.NewVoucherService(db, ledgerService, cfg.RedeemDailyLimit)
	purchaseService = services.NewPurchaseService(db, ledgerService, verifier)
}

// currentUser pulls the authenticated user set by the auth middleware.
func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		utils.LogError("User not found in context")
		utils.Unauthorized(c, "User not found")
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	if !ok {
		utils.LogError("Invalid user type in context")
		utils.BadRequest(c, "Invalid user in context", nil)
		return models.User{}, false
	}
	return user, true
}

// currentAdmin pulls the authenticated admin set by the admin middleware.
func currentAdmin(c *gin.Context) (models.Admin, bool) {
	adminVal, exists := c.Get("admin")
	if !exists {
		utils.LogError("Admin not found in context")
		utils.Unauthorized(c, "Admin not found")
		return models.Admin{}, false
	}
	admin, ok := adminVal.(models.Admin)
	if !ok {
		utils.LogError("Invalid admin type in context")
		utils.BadRequest(c, "Invalid admin in context", nil)
		return models.Admin{}, false
	}
	return admin, true
}

// codeStateMessages maps voucher states to user-facing messages.
var codeStateMessages = map[string]string{
	models.VoucherStatusUsed:     "This code has already been used",
	models.VoucherStatusExpired:  "This code has expired",
	models.VoucherStatusDisabled: "This code has been disabled",
}

// handleServiceError translates the service error taxonomy into the
// standard response envelope.
func handleServiceError(c *gin.Context, err error) {
	if stateErr, ok := services.AsInvalidCodeState(err); ok {
		message, found := codeStateMessages[stateErr.State]
		if !found {
			message = "This code is not available"
		}
		utils.BadRequest(c, message, gin.H{"state": stateErr.State})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		utils.NotFound(c, "User not found")
	case errors.Is(err, services.ErrVoucherNotFound):
		utils.NotFound(c, "Invalid redeem code")
	case errors.Is(err, services.ErrPurchaseNotFound):
		utils.NotFound(c, "Purchase not found")
	case errors.Is(err, services.ErrThrottleExceeded):
		utils.TooManyRequests(c, "Daily redeem limit exceeded")
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.BadRequest(c, "Insufficient credit balance", nil)
	case errors.Is(err, services.ErrConcurrencyConflict):
		utils.Conflict(c, "Balance was modified concurrently, please retry", nil)
	case errors.Is(err, services.ErrVerificationFailed):
		utils.BadRequest(c, "Purchase verification failed", err.Error())
	case errors.Is(err, services.ErrProviderUnavailable):
		utils.ServiceUnavailable(c, "Payment provider not available")
	default:
		utils.LogError("Unhandled service error: %v", err)
		utils.InternalServerError(c, "Internal server error", nil)
	}
}
