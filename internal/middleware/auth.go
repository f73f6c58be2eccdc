package middleware

import (
	"strconv"
	"strings"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/util"
	"tuteck_exam_backend/pkg/logger"
	"tuteck_exam_backend/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the bearer token issued by the authentication
// service and stores its claims under "user".
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 证书下载链接可能直接在浏览器打开
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err), zap.String("path", c.FullPath()))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RequireRoleLevel admits callers whose role level is maxLevel or more
// privileged (numerically lower).
func RequireRoleLevel(maxLevel int) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if user.RoleLevel < 1 || user.RoleLevel > maxLevel {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserRateKey charges a request to the authenticated user, so candidates
// sitting behind one exam-room NAT do not share a bucket. Anonymous requests
// fall back to the client IP.
func UserRateKey(c *gin.Context) string {
	if user := util.GetUserFromContext(c); user != nil {
		return "user:" + strconv.FormatUint(uint64(user.UserID), 10)
	}
	return security.ClientIPKey(c)
}
