package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/models"
	"github.com/arcane-labs/credits-backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AuthMiddleware authenticates app users by bearer token and puts the
// loaded user into the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearerClaims(c)
		if !ok {
			return
		}

		userIDClaim, ok := claims["user_id"].(float64)
		if !ok {
			utils.LogError("Missing user id in token claims")
			abortUnauthorized(c, "Please login for access")
			return
		}
		userID := uint(userIDClaim)

		var user models.User
		if err := config.DB.First(&user, userID).Error; err != nil {
			utils.LogError("User %d from token not found: %v", userID, err)
			abortUnauthorized(c, "User not found")
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// AdminAuthMiddleware authenticates administrators by bearer token and
// puts the loaded admin into the request context.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearerClaims(c)
		if !ok {
			return
		}

		adminIDClaim, ok := claims["admin_id"].(float64)
		if !ok {
			utils.LogError("Missing admin id in token claims")
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		adminID := uint(adminIDClaim)

		var admin models.Admin
		if err := config.DB.First(&admin, adminID).Error; err != nil {
			utils.LogError("Admin %d from token not found: %v", adminID, err)
			abortUnauthorized(c, "Admin not found")
			return
		}

		if !admin.IsActive {
			utils.LogError("Inactive admin %d attempted access", adminID)
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin account is inactive"})
			c.Abort()
			return
		}

		c.Set("admin", admin)
		c.Next()
	}
}

func parseBearerClaims(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		utils.LogError("Missing Authorization header")
		abortUnauthorized(c, "Please login for access")
		return nil, false
	}

	tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		utils.LogError("Invalid token: %v", err)
		abortUnauthorized(c, "Please login for access")
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		utils.LogError("Invalid token claims")
		abortUnauthorized(c, "Invalid token claims")
		return nil, false
	}
	return claims, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	c.Abort()
}
