package controllers

import (
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// VerifyPurchaseRequest is the payload for verifying a Google Play
// in-app purchase.
type VerifyPurchaseRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	ReceiptToken string `json:"receipt_token" binding:"required"`
	OrderID      string `json:"order_id"`
}

// VerifyGooglePlayPurchase confirms a purchase with Google Play and
// credits the user exactly once per receipt token. Client retries with
// the same token receive the original result.
func VerifyGooglePlayPurchase(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.LogInfo("Processing purchase verification for user ID: %d", user.ID)

	var req VerifyPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid purchase request for user ID: %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. product_id and receipt_token are required", err.Error())
		return
	}

	result, err := purchaseService.VerifyPurchase(c.Request.Context(),
		user.InstallationID, req.ProductID, req.ReceiptToken, req.OrderID)
	if err != nil {
		utils.LogError("Purchase verification failed for user ID: %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	message := "Purchase verified and credits awarded"
	if result.AlreadyProcessed {
		message = "Purchase already processed"
	}
	utils.Success(c, message, gin.H{
		"order_id":        result.OrderID,
		"credits_awarded": result.CreditsAwarded,
		"new_balance":     result.NewBalance,
	})
}

// ConsumePurchaseRequest is the payload for acknowledging consumption of
// a verified purchase with Google Play.
type ConsumePurchaseRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	ReceiptToken string `json:"receipt_token" binding:"required"`
}

// ConsumeGooglePlayPurchase marks an already-credited purchase consumed
// on the provider side. Best-effort: the credit grant stands regardless.
func ConsumeGooglePlayPurchase(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ConsumePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid consume request for user ID: %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. product_id and receipt_token are required", err.Error())
		return
	}

	consumed, err := purchaseService.ConsumePurchase(c.Request.Context(), req.ProductID, req.ReceiptToken)
	if err != nil {
		utils.LogError("Purchase consume failed for user ID: %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	message := "Purchase consumed"
	if !consumed {
		message = "Purchase consume pending, retry later"
	}
	utils.Success(c, message, gin.H{"consumed": consumed})
}
