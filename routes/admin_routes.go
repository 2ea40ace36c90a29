package routes

import (
	"github.com/arcane-labs/credits-backend/controllers"
	"github.com/arcane-labs/credits-backend/middleware"
	"github.com/gin-gonic/gin"
)

// initAdminRoutes initializes all admin-related routes
func initAdminRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		// Public admin routes
		admin.POST("/login", controllers.AdminLogin)

		// Protected admin routes
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/profile", controllers.GetAdminProfile)

			// User management
			admin.GET("/users", controllers.GetUsers)
			admin.GET("/users/:id", controllers.GetUserDetail)
			admin.POST("/users/:id/credits/adjust", controllers.AdjustUserCredits)

			// Voucher management
			admin.POST("/vouchers/generate", controllers.GenerateVouchers)
			admin.GET("/vouchers", controllers.ListVouchers)
			admin.GET("/vouchers/batches/:batchId/stats", controllers.GetBatchStats)
			admin.POST("/vouchers/disable", controllers.DisableVouchers)
			admin.POST("/vouchers/expire", controllers.ExpireVouchers)

			// Purchase audit
			admin.GET("/purchases", controllers.ListPurchases)
		}
	}
}
