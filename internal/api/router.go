package api

import (
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"hims-billing-backend/config"
	"hims-billing-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. cacheStore backs the
// bed board responses; any bed write flushes it.
func NewRouter(cfg config.ServerConfig, handler *Handler, cacheStore *cache.Cache) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)
	purge := mw.Purge(cacheStore)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/bills", handler.ListBills)
		api.POST("/bills", handler.CreateBill)
		api.GET("/bills/:bill_id", handler.GetBill)
		api.POST("/payments", handler.RecordPayment)

		api.GET("/patients/:patient_id/bill", handler.GetPatientBill)
		api.GET("/patients/:patient_id/charges", handler.ListCharges)
		api.POST("/charges", handler.CreateCharge)

		api.GET("/wards", caching, handler.ListWards)
		api.GET("/beds", caching, handler.ListBeds)
		api.POST("/beds", purge, handler.CreateBed)
		api.PATCH("/beds/:bed_id", purge, handler.PatchBed)
		api.PUT("/beds/:bed_id/assignment", purge, handler.AssignBed)
		api.DELETE("/beds/:bed_id/assignment", purge, handler.ReleaseBed)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
