package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"hims-billing-backend/internal/billing"
	"hims-billing-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	agg     *billing.Aggregator
	rec     *billing.Reconciler
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, agg *billing.Aggregator, rec *billing.Reconciler, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		agg:     agg,
		rec:     rec,
		webpush: webpushOptions,
	}
}

// abortWithError maps domain errors to HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrMissingBillRef),
		errors.Is(err, billing.ErrInvalidBill),
		errors.Is(err, store.ErrInvalidCharge):
		status = http.StatusBadRequest
	case errors.Is(err, billing.ErrBillNotFound),
		errors.Is(err, billing.ErrNoOutstandingBill),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func patientIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid patient ID"})
		return 0, false
	}
	return id, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
