package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/http/response"
	"github.com/yungbote/nearby-backend/internal/services"
)

type AnalysisHandler struct {
	analyses services.AnalysisService
}

func NewAnalysisHandler(analyses services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses}
}

// GET /api/analyses/:userId
func (h *AnalysisHandler) Get(c *gin.Context) {
	viewer, ok := callerID(c)
	if !ok {
		return
	}
	about, ok := pathUserID(c)
	if !ok {
		return
	}
	view, err := h.analyses.Get(c.Request.Context(), viewer, about)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"analysis": view})
}
