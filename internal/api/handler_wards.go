package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hims-billing-backend/internal/model"
)

// WardResponse represents the API response for a single ward.
type WardResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	TotalBeds     int64  `json:"totalBeds"`
	OccupiedBeds  int64  `json:"occupiedBeds"`
	AvailableBeds int64  `json:"availableBeds"`
}

// ListWards handles GET /api/wards with bed counts per ward.
func (h *Handler) ListWards(c *gin.Context) {
	db := h.store.DB().WithContext(c.Request.Context())

	var wards []model.Ward
	if err := db.Order("name").Find(&wards).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve wards"})
		return
	}

	type AggRow struct {
		WardID        int64
		TotalBeds     int64
		OccupiedBeds  int64
		AvailableBeds int64
	}
	var aggs []AggRow
	if err := db.
		Model(&model.Occupancy{}).
		Select("ward_id, COUNT(*) as total_beds, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as occupied_beds, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as available_beds",
			model.BedOccupied, model.BedAvailable).
		Where("ward_id IS NOT NULL").
		Group("ward_id").
		Scan(&aggs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate beds"})
		return
	}

	aggMap := make(map[int64]AggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.WardID] = a
	}

	responses := make([]WardResponse, 0, len(wards))
	for _, w := range wards {
		a := aggMap[w.ID]
		responses = append(responses, WardResponse{
			ID:            w.ID,
			Name:          w.Name,
			TotalBeds:     a.TotalBeds,
			OccupiedBeds:  a.OccupiedBeds,
			AvailableBeds: a.AvailableBeds,
		})
	}
	c.JSON(http.StatusOK, responses)
}
