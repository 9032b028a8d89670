package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/models"
	"github.com/cascacheck/cascacheck_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the caller's identity and loads it into the
// request context. Two credentials are accepted: the redis session token
// issued by login (header "token") and a JWT bearer for
// service-to-service calls.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token != "" {
			username, exists, err := config.GetRedisValue("Token:" + token)
			if err != nil || !exists {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}

			user, err := models.GetUserByUsername(c.Request.Context(), username)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}

			ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
			ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)
			c.Request = c.Request.WithContext(userContext(ctx, user))
			c.Next()
			return
		}

		authHeader := c.Request.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			jwtToken, err := utils.JwtValidate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil || !jwtToken.Valid {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			claims, ok := jwtToken.Claims.(*utils.JwtCustomClaim)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}

			user, err := models.GetUser(c.Request.Context(), claims.ID)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}

			ctx := context.WithValue(c.Request.Context(), utils.ContextKeyUsername, user.Username)
			c.Request = c.Request.WithContext(userContext(ctx, user))
			c.Next()
			return
		}

		c.Next()
	}
}

func userContext(ctx context.Context, user *models.User) context.Context {
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)
	ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
	ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
	if user.StoreId != nil {
		ctx = utils.SetStoreIdInContext(ctx, *user.StoreId)
	}
	return ctx
}
