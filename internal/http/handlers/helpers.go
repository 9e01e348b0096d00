package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/http/response"
	"github.com/yungbote/nearby-backend/internal/pkg/ctxutil"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("userId")))
	if err != nil || id == uuid.Nil {
		response.Fail(c, apperrors.Invalid("userId", "must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// queryFloat returns def when the parameter is absent.
func queryFloat(c *gin.Context, key string, def float64, required bool) (float64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		if required {
			response.Fail(c, apperrors.Invalid(key, "required"))
			return 0, false
		}
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		response.Fail(c, apperrors.Invalid(key, "must be a number"))
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		response.Fail(c, apperrors.Invalid(key, "must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Fail(c, apperrors.Invalid("body", err.Error()))
		return false
	}
	return true
}
