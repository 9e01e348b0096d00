package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/geo"
	"github.com/yungbote/nearby-backend/internal/http/response"
	"github.com/yungbote/nearby-backend/internal/services"
)

type NearbyHandler struct {
	nearby        services.NearbyService
	defaultRadius float64
}

func NewNearbyHandler(nearby services.NearbyService, defaultRadius float64) *NearbyHandler {
	return &NearbyHandler{nearby: nearby, defaultRadius: defaultRadius}
}

// GET /api/nearby?lat&lng&radius&limit
func (h *NearbyHandler) GetNearby(c *gin.Context) {
	viewer, ok := callerID(c)
	if !ok {
		return
	}
	lat, ok := queryFloat(c, "lat", 0, true)
	if !ok {
		return
	}
	lng, ok := queryFloat(c, "lng", 0, true)
	if !ok {
		return
	}
	radius, ok := queryFloat(c, "radius", h.defaultRadius, false)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", services.DefaultNearbyLimit)
	if !ok {
		return
	}
	out, err := h.nearby.Nearby(c.Request.Context(), viewer, geo.Point{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"users": out})
}
