package controllers

import (
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// GenerateVouchersRequest is the payload for generating a voucher batch.
type GenerateVouchersRequest struct {
	Count         int    `json:"count" binding:"required,min=1,max=10000"`
	Credits       int    `json:"credits" binding:"required,min=1"`
	ExpiresInDays int    `json:"expires_in_days" binding:"omitempty,min=1"`
	BatchName     string `json:"batch_name"`
}

// GenerateVouchers creates a batch of single-use voucher codes.
func GenerateVouchers(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		return
	}

	var req GenerateVouchersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid voucher generation request from admin %d: %v", admin.ID, err)
		utils.BadRequest(c, "Invalid request. count and credits are required", err.Error())
		return
	}
	utils.LogInfo("Admin %d generating %d vouchers worth %d credits", admin.ID, req.Count, req.Credits)

	codes, batchID, err := voucherService.GenerateVouchers(req.Count, req.Credits, req.ExpiresInDays, req.BatchName)
	if err != nil {
		utils.LogError("Voucher generation failed for admin %d: %v", admin.ID, err)
		utils.InternalServerError(c, "Failed to generate vouchers", err.Error())
		return
	}

	utils.Created(c, "Vouchers generated successfully", gin.H{
		"batch_id": batchID,
		"count":    len(codes),
		"credits":  req.Credits,
		"codes":    codes,
	})
}

// ListVouchers returns a paginated voucher listing with optional batch
// and status filters.
func ListVouchers(c *gin.Context) {
	page, limit := utils.GetPaginationParams(c)
	batchID := c.Query("batch_id")
	status := c.Query("status")

	vouchers, total, err := voucherService.ListVouchers(batchID, status, limit, (page-1)*limit)
	if err != nil {
		utils.LogError("Failed to list vouchers: %v", err)
		utils.InternalServerError(c, "Failed to load vouchers", nil)
		return
	}

	utils.SuccessWithPagination(c, "Vouchers retrieved successfully", vouchers, total, page, limit)
}

// GetBatchStats returns per-status counts for a voucher batch.
func GetBatchStats(c *gin.Context) {
	batchID := c.Param("batchId")
	if batchID == "" {
		utils.BadRequest(c, "Batch id is required", nil)
		return
	}

	stats, err := voucherService.GetBatchStats(batchID)
	if err != nil {
		utils.LogError("Failed to load batch stats for %s: %v", batchID, err)
		utils.InternalServerError(c, "Failed to load batch stats", nil)
		return
	}

	utils.Success(c, "Batch stats retrieved successfully", stats)
}

// DisableVouchersRequest is the payload for disabling voucher codes.
type DisableVouchersRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// DisableVouchers disables active or expired vouchers. Used codes are
// immutable and are skipped.
func DisableVouchers(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		return
	}

	var req DisableVouchersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid disable request from admin %d: %v", admin.ID, err)
		utils.BadRequest(c, "Invalid request. ids are required", err.Error())
		return
	}

	disabled, err := voucherService.DisableVouchers(req.IDs)
	if err != nil {
		utils.LogError("Failed to disable vouchers for admin %d: %v", admin.ID, err)
		utils.InternalServerError(c, "Failed to disable vouchers", nil)
		return
	}

	utils.Success(c, "Vouchers disabled", gin.H{
		"requested": len(req.IDs),
		"disabled":  disabled,
	})
}

// ExpireVouchers sweeps active vouchers whose expiry has passed.
func ExpireVouchers(c *gin.Context) {
	expired, err := voucherService.ExpireDueVouchers()
	if err != nil {
		utils.LogError("Voucher expiry sweep failed: %v", err)
		utils.InternalServerError(c, "Failed to expire vouchers", nil)
		return
	}

	utils.Success(c, "Expiry sweep completed", gin.H{"expired": expired})
}
