package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerClientHeader(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 1, "X-Real-IP"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	alice := map[string]string{"X-Real-IP": "10.0.0.1"}
	bob := map[string]string{"X-Real-IP": "10.0.0.2, 172.16.0.1"}

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", bob).Code)
}

func TestCache_ServesUntilPurged(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	hits := 0

	r := gin.New()
	r.GET("/beds", Cache(store, time.Minute), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})
	r.PATCH("/beds/:id", Purge(store), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	first := do(r, http.MethodGet, "/beds", nil)
	second := do(r, http.MethodGet, "/beds", nil)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, hits)

	do(r, http.MethodPatch, "/beds/bad", nil)
	do(r, http.MethodGet, "/beds", nil)
	assert.Equal(t, 1, hits, "failed writes keep the cache")

	do(r, http.MethodPatch, "/beds/ICU-2-07", nil)
	third := do(r, http.MethodGet, "/beds", nil)
	assert.Equal(t, 2, hits)
	assert.JSONEq(t, `{"hits":2}`, third.Body.String())
}
