package controllers

import (
	"fmt"

	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// RedeemRequest is the payload for redeeming a voucher code.
type RedeemRequest struct {
	Code string `json:"code" binding:"required,min=4,max=32"`
}

// RedeemCode validates and claims a voucher code for the authenticated
// user, crediting its value. Exactly one of any number of concurrent
// attempts on the same code succeeds.
func RedeemCode(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.LogInfo("Processing code redemption for user ID: %d", user.ID)

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid redeem request for user ID: %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. code is required", err.Error())
		return
	}

	result, err := voucherService.Redeem(req.Code, user.ID)
	if err != nil {
		utils.LogError("Redemption failed for user ID: %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.Success(c, fmt.Sprintf("Successfully redeemed %d credits", result.CreditsGranted), gin.H{
		"credits_granted": result.CreditsGranted,
		"new_balance":     result.NewBalance,
		"transaction_id":  result.TransactionID,
	})
}

// GetRedeemCodeInfo reports whether a code is currently redeemable and
// what it is worth, without claiming it.
func GetRedeemCodeInfo(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid code info request: %v", err)
		utils.BadRequest(c, "Invalid request. code is required", err.Error())
		return
	}

	voucher, err := voucherService.VoucherInfo(req.Code)
	if err != nil {
		if voucher != nil {
			// Code exists but is not redeemable; report its state rather
			// than an opaque failure.
			message := codeStateMessages[voucher.Status]
			if message == "" {
				message = "This code is not available"
			}
			utils.Success(c, message, gin.H{
				"valid":  false,
				"status": voucher.Status,
			})
			return
		}
		handleServiceError(c, err)
		return
	}

	utils.Success(c, fmt.Sprintf("Valid code for %d credits", voucher.Credits), gin.H{
		"valid":      true,
		"credits":    voucher.Credits,
		"expires_at": voucher.ExpiresAt,
	})
}
