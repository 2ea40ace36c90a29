package routes

import (
	"github.com/arcane-labs/credits-backend/controllers"
	"github.com/arcane-labs/credits-backend/middleware"
	"github.com/gin-gonic/gin"
)

// initUserRoutes initializes all user-facing routes
func initUserRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/users/register", controllers.RegisterUser)
	router.POST("/users/auth", controllers.AuthenticateUser)
	router.POST("/payments/redeem/info", controllers.GetRedeemCodeInfo)

	// Authenticated routes
	authed := router.Group("")
	authed.Use(middleware.AuthMiddleware())
	{
		authed.GET("/me/balance", controllers.GetBalance)
		authed.GET("/me/transactions", controllers.GetTransactions)
		authed.GET("/me/stats", controllers.GetStats)
		authed.POST("/credits/consume", controllers.ConsumeCredits)

		authed.POST("/payments/redeem", controllers.RedeemCode)
		authed.POST("/payments/google/verify", controllers.VerifyGooglePlayPurchase)
		authed.POST("/payments/google/consume", controllers.ConsumeGooglePlayPurchase)
	}
}
