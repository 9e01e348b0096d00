package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/http/response"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
	"github.com/yungbote/nearby-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
	profiles    services.ProfileService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService, profiles services.ProfileService) *AuthMiddleware {
	return &AuthMiddleware{
		log:         log.With("middleware", "AuthMiddleware"),
		authService: authService,
		profiles:    profiles,
	}
}

// RequireAuth verifies the bearer token, puts the caller on the request
// context and makes sure they have a profile row.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		ctx, id, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("Token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
			return
		}
		if am.profiles != nil {
			if err := am.profiles.Ensure(ctx, id); err != nil {
				am.log.Warn("Profile ensure failed", "user_id", rd.UserID, "error", err)
				response.Fail(c, err)
				return
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
