package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
	"hims-billing-backend/internal/store"
)

// ListBeds handles GET /api/beds, optionally narrowed to one ward.
func (h *Handler) ListBeds(c *gin.Context) {
	occs, err := h.store.ListOccupancies(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	ward := c.Query("ward")
	beds := make([]model.Occupancy, 0, len(occs))
	for _, o := range occs {
		if ward != "" && o.Ward != ward {
			continue
		}
		beds = append(beds, o)
	}
	c.JSON(http.StatusOK, beds)
}

type createBedRequest struct {
	BedID     string          `json:"bed_id" binding:"required"`
	Ward      string          `json:"ward"`
	Status    model.BedStatus `json:"status"`
	DailyRate decimal.Decimal `json:"daily_rate"`
}

// CreateBed handles POST /api/beds.
func (h *Handler) CreateBed(c *gin.Context) {
	var req createBedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.DailyRate.IsNegative() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "daily rate must not be negative"})
		return
	}

	bed := model.Occupancy{
		BedID:     req.BedID,
		Ward:      req.Ward,
		Status:    req.Status,
		DailyRate: req.DailyRate,
	}
	if err := h.store.CreateBed(c.Request.Context(), &bed); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bed)
}

type patchBedRequest struct {
	Status    *model.BedStatus `json:"status"`
	DailyRate *decimal.Decimal `json:"daily_rate"`
}

// PatchBed handles PATCH /api/beds/{bed_id}: status and rate changes.
// Moving an occupied bed to any other status discharges its patient.
func (h *Handler) PatchBed(c *gin.Context) {
	var req patchBedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.updateBed(c, store.OccupancyPatch{Status: req.Status, DailyRate: req.DailyRate})
}

type assignBedRequest struct {
	PatientID     int64            `json:"patient_id" binding:"required"`
	PatientName   string           `json:"patient_name"`
	AdmissionDate string           `json:"admission_date" binding:"required"`
	DailyRate     *decimal.Decimal `json:"daily_rate"`
}

// AssignBed handles PUT /api/beds/{bed_id}/assignment (admission).
func (h *Handler) AssignBed(c *gin.Context) {
	var req assignBedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	occupied := model.BedOccupied
	h.updateBed(c, store.OccupancyPatch{
		Status:        &occupied,
		PatientID:     &req.PatientID,
		PatientName:   &req.PatientName,
		AdmissionDate: &req.AdmissionDate,
		DailyRate:     req.DailyRate,
	})
}

// ReleaseBed handles DELETE /api/beds/{bed_id}/assignment (discharge). The
// bed goes to Cleaning unless ?status= names another free state.
func (h *Handler) ReleaseBed(c *gin.Context) {
	status := model.BedCleaning
	if s := c.Query("status"); s != "" {
		status = model.BedStatus(s)
	}
	if status == model.BedOccupied {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "a released bed cannot stay occupied"})
		return
	}

	h.updateBed(c, store.OccupancyPatch{Status: &status})
}

func (h *Handler) updateBed(c *gin.Context, patch store.OccupancyPatch) {
	bed, err := h.store.UpdateOccupancy(c.Request.Context(), c.Param("bed_id"), patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bed)
}
