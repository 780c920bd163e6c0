package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", RateLimit(0.0001, 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		rw := httptest.NewRecorder()
		g.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_KeysByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", RateLimit(0.0001, 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.8.0.1:1234"
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, first)
	require.Equal(t, http.StatusOK, rw.Code)

	// exhausted for the first address
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, first)
	require.Equal(t, http.StatusTooManyRequests, rw.Code)

	// a different address has its own bucket
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.8.0.2:1234"
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, second)
	require.Equal(t, http.StatusOK, rw.Code)
}
