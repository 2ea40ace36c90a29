package controllers

import (
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// GetBalance returns the authenticated user's current credit balance.
func GetBalance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	balance, err := ledgerService.GetBalance(user.ID)
	if err != nil {
		utils.LogError("Failed to load balance for user %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.Success(c, "Balance retrieved successfully", gin.H{
		"credits":    balance.Credits,
		"updated_at": balance.UpdatedAt,
	})
}

// GetTransactions returns a page of the user's credit ledger.
func GetTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit := utils.GetPaginationParams(c)
	transactions, total, err := ledgerService.ListTransactions(user.ID, limit, (page-1)*limit)
	if err != nil {
		utils.LogError("Failed to load transactions for user %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.SuccessWithPagination(c, "Transactions retrieved successfully", transactions, total, page, limit)
}

// GetStats returns the user's account summary.
func GetStats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := ledgerService.GetUserStats(user.ID)
	if err != nil {
		utils.LogError("Failed to load stats for user %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.Success(c, "Stats retrieved successfully", stats)
}

// ConsumeRequest is the payload for spending credits on an app action.
type ConsumeRequest struct {
	Amount      int    `json:"amount" binding:"required,min=1"`
	Reference   string `json:"reference" binding:"required"`
	Description string `json:"description"`
}

// ConsumeCredits spends credits for an application action. Overdrafts
// fail without any effect on the balance or the ledger.
func ConsumeCredits(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.LogInfo("Processing credit consumption for user ID: %d", user.ID)

	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid consume request for user ID: %d: %v", user.ID, err)
		utils.BadRequest(c, "Invalid request. amount and reference are required", err.Error())
		return
	}

	balance, txn, err := ledgerService.ConsumeCredits(user.ID, req.Amount, req.Reference, req.Description)
	if err != nil {
		utils.LogError("Failed to consume %d credits for user ID: %d: %v", req.Amount, user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.LogInfo("Consumed %d credits for user ID: %d (remaining: %d)", req.Amount, user.ID, balance.Credits)
	utils.Success(c, "Credits consumed successfully", gin.H{
		"consumed":       req.Amount,
		"new_balance":    balance.Credits,
		"transaction_id": txn.ID,
	})
}
