package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/model"
)

// ListCharges handles GET /api/patients/{patient_id}/charges.
func (h *Handler) ListCharges(c *gin.Context) {
	patientID, ok := patientIDParam(c)
	if !ok {
		return
	}

	charges, err := h.store.ListCharges(c.Request.Context(), patientID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if charges == nil {
		charges = []model.Charge{}
	}
	c.JSON(http.StatusOK, charges)
}

type createChargeRequest struct {
	PatientID  int64                `json:"patient_id" binding:"required"`
	BedID      string               `json:"bed_id"`
	ItemName   string               `json:"item_name" binding:"required"`
	Category   model.ChargeCategory `json:"category" binding:"required"`
	Quantity   int                  `json:"quantity" binding:"required"`
	UnitPrice  decimal.Decimal      `json:"unit_price"`
	RecordedAt *time.Time           `json:"recorded_at"`
}

// CreateCharge handles POST /api/charges.
func (h *Handler) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	charge := model.Charge{
		PatientID: req.PatientID,
		BedID:     req.BedID,
		ItemName:  req.ItemName,
		Category:  req.Category,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	}
	if req.RecordedAt != nil {
		charge.RecordedAt = req.RecordedAt.UTC()
	}

	if err := h.store.CreateCharge(c.Request.Context(), &charge); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, charge)
}
