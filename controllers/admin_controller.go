package controllers

import (
	"strconv"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// GetUsers returns a paginated list of users with their balances.
func GetUsers(c *gin.Context) {
	page, limit := utils.GetPaginationParams(c)

	var total int64
	if err := config.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.LogError("Failed to count users: %v", err)
		utils.InternalServerError(c, "Failed to load users", nil)
		return
	}

	var users []models.User
	err := config.DB.Preload("Balance").
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&users).Error
	if err != nil {
		utils.LogError("Failed to load users: %v", err)
		utils.InternalServerError(c, "Failed to load users", nil)
		return
	}

	utils.SuccessWithPagination(c, "Users retrieved successfully", users, total, page, limit)
}

// GetUserDetail returns one user's account summary and recent ledger.
func GetUserDetail(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Invalid user id", nil)
		return
	}

	stats, err := ledgerService.GetUserStats(uint(userID))
	if err != nil {
		utils.LogError("Failed to load stats for user %d: %v", userID, err)
		handleServiceError(c, err)
		return
	}

	transactions, _, err := ledgerService.ListTransactions(uint(userID), 20, 0)
	if err != nil {
		utils.LogError("Failed to load transactions for user %d: %v", userID, err)
		handleServiceError(c, err)
		return
	}

	utils.Success(c, "User retrieved successfully", gin.H{
		"stats":               stats,
		"recent_transactions": transactions,
	})
}

// AdjustCreditsRequest is the payload for a manual balance correction.
type AdjustCreditsRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required,min=3"`
}

// AdjustUserCredits applies a manual credit correction to a user's
// balance, recording the acting admin and justification in the ledger.
func AdjustUserCredits(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Invalid user id", nil)
		return
	}

	var req AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid adjust request from admin %d: %v", admin.ID, err)
		utils.BadRequest(c, "Invalid request. delta and reason are required", err.Error())
		return
	}
	utils.LogInfo("Admin %d adjusting user %d by %d: %s", admin.ID, userID, req.Delta, req.Reason)

	balance, txn, err := ledgerService.AdminAdjustBalance(uint(userID), req.Delta, req.Reason, admin.ID)
	if err != nil {
		utils.LogError("Adjustment failed for user %d by admin %d: %v", userID, admin.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.Success(c, "Balance adjusted successfully", gin.H{
		"new_balance":    balance.Credits,
		"transaction_id": txn.ID,
	})
}

// ListPurchases returns a paginated list of purchases, optionally
// filtered by user id.
func ListPurchases(c *gin.Context) {
	page, limit := utils.GetPaginationParams(c)

	var userID uint
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.BadRequest(c, "Invalid user_id filter", nil)
			return
		}
		userID = uint(parsed)
	}

	purchases, total, err := purchaseService.ListPurchases(userID, limit, (page-1)*limit)
	if err != nil {
		utils.LogError("Failed to load purchases: %v", err)
		utils.InternalServerError(c, "Failed to load purchases", nil)
		return
	}

	utils.SuccessWithPagination(c, "Purchases retrieved successfully", purchases, total, page, limit)
}
