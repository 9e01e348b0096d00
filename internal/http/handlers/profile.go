package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/http/response"
	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
	"github.com/yungbote/nearby-backend/internal/services"
)

type ProfileHandler struct {
	profiles services.ProfileService
}

func NewProfileHandler(profiles services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GET /api/me/profile
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	me, err := h.profiles.GetMe(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": me})
}

// PUT /api/me/location {lat,lng} or {"clear":true}
func (h *ProfileHandler) PutLocation(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Lat   *float64 `json:"lat"`
		Lng   *float64 `json:"lng"`
		Clear bool     `json:"clear"`
	}
	if !bindJSON(c, &req) {
		return
	}
	var err error
	switch {
	case req.Clear:
		err = h.profiles.ClearLocation(c.Request.Context(), userID)
	case req.Lat == nil || req.Lng == nil:
		err = apperrors.Invalid("lat/lng", "required")
	default:
		err = h.profiles.UpdateLocation(c.Request.Context(), userID, geo.Point{Lat: *req.Lat, Lng: *req.Lng})
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/me/visibility {visible}
func (h *ProfileHandler) PutVisibility(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Visible *bool `json:"visible"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Visible == nil {
		response.Fail(c, apperrors.Invalid("visible", "required"))
		return
	}
	if err := h.profiles.UpdateVisibility(c.Request.Context(), userID, *req.Visible); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/me/descriptor {bio,lookingFor,interestTags}
func (h *ProfileHandler) PutDescriptor(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Bio          string   `json:"bio"`
		LookingFor   string   `json:"lookingFor"`
		InterestTags []string `json:"interestTags"`
	}
	if !bindJSON(c, &req) {
		return
	}
	err := h.profiles.UpdateDescriptor(c.Request.Context(), userID, repos.DescriptorSource{
		Bio:          req.Bio,
		LookingFor:   req.LookingFor,
		InterestTags: req.InterestTags,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"status": "enrichment_scheduled"})
}
