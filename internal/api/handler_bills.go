package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"hims-billing-backend/internal/billing"
	"hims-billing-backend/internal/model"
)

// ListBills handles GET /api/bills. Admitted patients get their running bill;
// every other stored bill is listed as is. Optional filters: patient_id, type.
func (h *Handler) ListBills(c *gin.Context) {
	views, err := h.agg.CurrentBills(c.Request.Context())
	if err != nil {
		// the list is all or nothing; an empty one is still a valid answer
		log.Printf("Error building bill list: %v", err)
	}

	billType := model.BillType(c.Query("type"))
	patient := c.Query("patient_id")
	filtered := make([]billing.View, 0, len(views))
	for _, v := range views {
		if billType != "" && v.Type != billType {
			continue
		}
		if patient != "" && patient != formatID(v.PatientID) {
			continue
		}
		filtered = append(filtered, v)
	}
	c.JSON(http.StatusOK, filtered)
}

// GetPatientBill handles GET /api/patients/{patient_id}/bill. The body is
// null when the patient has nothing to bill.
func (h *Handler) GetPatientBill(c *gin.Context) {
	patientID, ok := patientIDParam(c)
	if !ok {
		return
	}

	view, err := h.agg.CurrentBillForPatient(c.Request.Context(), patientID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetBill handles GET /api/bills/{bill_id} for stored bills.
func (h *Handler) GetBill(c *gin.Context) {
	bill, err := h.store.GetBill(c.Request.Context(), c.Param("bill_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing.View{Kind: billing.KindPersisted, Bill: bill})
}

type billLineRequest struct {
	Name      string               `json:"name" binding:"required"`
	Category  model.ChargeCategory `json:"category" binding:"required"`
	Quantity  int                  `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal      `json:"unit_price"`
}

type createBillRequest struct {
	PatientID     int64             `json:"patient_id" binding:"required"`
	PatientName   string            `json:"patient_name"`
	Type          model.BillType    `json:"bill_type" binding:"required"`
	Lines         []billLineRequest `json:"lines" binding:"required,dive"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	PaymentMethod string            `json:"payment_method"`
}

// CreateBill handles POST /api/bills for OPD and Pharmacy bills.
func (h *Handler) CreateBill(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	draft := model.Bill{
		PatientID:   req.PatientID,
		PatientName: strings.TrimSpace(req.PatientName),
		Type:        req.Type,
		Lines:       make([]model.BillLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		draft.Lines = append(draft.Lines, model.BillLine{
			Name:      l.Name,
			Category:  l.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	bill, err := h.rec.OpenBill(c.Request.Context(), draft, req.AmountPaid, req.PaymentMethod)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, billing.View{Kind: billing.KindPersisted, Bill: *bill})
}

type recordPaymentRequest struct {
	BillID    string          `json:"bill_id"`
	PatientID int64           `json:"patient_id"`
	Amount    decimal.Decimal `json:"amount_paid"`
	Method    string          `json:"payment_method"`
}

// RecordPayment handles POST /api/payments. A payment against a patient's
// running bill stores that bill first.
func (h *Handler) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ref := billing.Ref{BillID: strings.TrimSpace(req.BillID), PatientID: req.PatientID}
	bill, err := h.rec.RecordPayment(c.Request.Context(), ref, req.Amount, req.Method)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing.View{Kind: billing.KindPersisted, Bill: *bill})
}
