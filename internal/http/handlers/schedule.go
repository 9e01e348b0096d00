package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/http/response"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
	"github.com/yungbote/nearby-backend/internal/services"
)

type ScheduleHandler struct {
	log           *logger.Logger
	scheduler     services.PairScheduler
	defaultRadius float64
}

func NewScheduleHandler(log *logger.Logger, scheduler services.PairScheduler, defaultRadius float64) *ScheduleHandler {
	return &ScheduleHandler{
		log:           log.With("handler", "ScheduleHandler"),
		scheduler:     scheduler,
		defaultRadius: defaultRadius,
	}
}

// POST /api/schedule/neighborhood {lat,lng,radius}
func (h *ScheduleHandler) Neighborhood(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Lat    *float64 `json:"lat"`
		Lng    *float64 `json:"lng"`
		Radius *float64 `json:"radius"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		response.Fail(c, apperrors.Invalid("lat/lng", "required"))
		return
	}
	radius := h.defaultRadius
	if req.Radius != nil {
		radius = *req.Radius
	}
	if err := h.scheduler.TriggerNeighborhood(c.Request.Context(), userID, geo.Point{Lat: *req.Lat, Lng: *req.Lng}, radius); err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"status": "scheduled"})
}

// POST /api/schedule/promote {userId}
func (h *ScheduleHandler) Promote(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if !bindJSON(c, &req) {
		return
	}
	other, err := uuid.Parse(req.UserID)
	if err != nil || other == uuid.Nil {
		response.Fail(c, apperrors.Invalid("userId", "must be a uuid"))
		return
	}
	if other == userID {
		response.Fail(c, apperrors.Invalid("userId", "cannot pair a user with itself"))
		return
	}
	// blocks and enqueue failures are not surfaced
	if _, err := h.scheduler.PromotePair(c.Request.Context(), userID, other); err != nil && !errors.Is(err, apperrors.ErrBlocked) {
		h.log.Warn("Promote enqueue failed", "user_id", userID, "error", err)
	}
	response.RespondAccepted(c, gin.H{"status": "scheduled"})
}
