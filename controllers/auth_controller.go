package controllers

import (
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
)

// RegisterRequest is the payload for user registration and authentication.
// Users are anonymous, keyed by the device installation id; an email can
// optionally be bound for recovery.
type RegisterRequest struct {
	InstallationID string  `json:"installation_id" binding:"required,min=8,max=255"`
	Email          *string `json:"email" binding:"omitempty,email"`
}

// RegisterUser registers (or re-authenticates) an installation and
// returns a bearer token. Registration is idempotent per installation id.
func RegisterUser(c *gin.Context) {
	utils.LogInfo("RegisterUser called")
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid registration request: %v", err)
		utils.BadRequest(c, "Invalid request. installation_id is required", err.Error())
		return
	}

	user, err := ledgerService.GetOrCreateUser(req.InstallationID, req.Email)
	if err != nil {
		utils.LogError("Failed to register installation %s: %v", req.InstallationID, err)
		handleServiceError(c, err)
		return
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		utils.LogError("Failed to generate token for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to generate token", nil)
		return
	}

	balance, err := ledgerService.GetBalance(user.ID)
	if err != nil {
		utils.LogError("Failed to load balance for user %d: %v", user.ID, err)
		handleServiceError(c, err)
		return
	}

	utils.LogInfo("User %d authenticated for installation %s", user.ID, req.InstallationID)
	utils.Success(c, "User registered successfully", gin.H{
		"token": token,
		"user": gin.H{
			"id":              user.ID,
			"installation_id": user.InstallationID,
			"email":           user.Email,
			"created_at":      user.CreatedAt,
		},
		"balance": gin.H{
			"credits": balance.Credits,
		},
	})
}

// AuthenticateUser authenticates an existing installation and returns a
// fresh bearer token.
func AuthenticateUser(c *gin.Context) {
	utils.LogInfo("AuthenticateUser called")
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid auth request: %v", err)
		utils.BadRequest(c, "Invalid request. installation_id is required", err.Error())
		return
	}

	user, err := ledgerService.GetUserByInstallation(req.InstallationID)
	if err != nil {
		utils.LogError("Authentication failed for installation %s: %v", req.InstallationID, err)
		handleServiceError(c, err)
		return
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		utils.LogError("Failed to generate token for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to generate token", nil)
		return
	}

	utils.Success(c, "Authentication successful", gin.H{
		"token": token,
		"user": gin.H{
			"id":              user.ID,
			"installation_id": user.InstallationID,
			"email":           user.Email,
		},
	})
}
