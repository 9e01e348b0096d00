package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/http/response"
	"github.com/yungbote/nearby-backend/internal/services"
)

type BlockHandler struct {
	blocks services.BlockService
}

func NewBlockHandler(blocks services.BlockService) *BlockHandler {
	return &BlockHandler{blocks: blocks}
}

// POST /api/blocks/:userId
func (h *BlockHandler) Block(c *gin.Context) {
	blocker, ok := callerID(c)
	if !ok {
		return
	}
	blocked, ok := pathUserID(c)
	if !ok {
		return
	}
	if err := h.blocks.Block(c.Request.Context(), blocker, blocked); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/blocks/:userId
func (h *BlockHandler) Unblock(c *gin.Context) {
	blocker, ok := callerID(c)
	if !ok {
		return
	}
	blocked, ok := pathUserID(c)
	if !ok {
		return
	}
	if err := h.blocks.Unblock(c.Request.Context(), blocker, blocked); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
