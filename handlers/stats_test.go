package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/automatter/rfptrack/internal/schema"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/middleware"
)

func newStatRouter(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	schemas, err := schema.DefaultRegistry()
	require.NoError(t, err)
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, schemas)
	r := gin.New()
	api := r.Group("/api", middleware.Auth(fakeAuth{}))
	NewStatHandler(NewResourceHandler(s, "$"), s).Register(api)
	return r, s
}

func statBody(key string, value float64) map[string]interface{} {
	return map[string]interface{}{
		"key":        key,
		"value":      value,
		"periodType": "day",
		"startDate":  "2025-08-01",
		"endDate":    "2025-08-01",
	}
}

func TestStats_CreateThenUpsertByKey(t *testing.T) {
	r, s := newStatRouter(t)

	rw, created := do(t, r, http.MethodPost, "/api/stats", "good", statBody("scrapers/samgov/2025-08-01", 3))
	require.Equal(t, http.StatusOK, rw.Code)
	id := created["id"].(string)

	rw, updated := do(t, r, http.MethodPost, "/api/stats", "good", statBody("scrapers/samgov/2025-08-01", 7))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, id, updated["id"])
	require.EqualValues(t, 7, updated["value"])

	n, err := s.Count(context.Background(), "stats", store.QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestStats_RejectsIncompleteRecord(t *testing.T) {
	r, s := newStatRouter(t)

	rw, body := do(t, r, http.MethodPost, "/api/stats", "good", map[string]interface{}{
		"key":   "scrapers/samgov/2025-08-01",
		"value": 3,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rw.Code)
	require.Contains(t, body, "error")

	n, err := s.Count(context.Background(), "stats", store.QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestStats_List(t *testing.T) {
	r, _ := newStatRouter(t)

	rw, _ := do(t, r, http.MethodPost, "/api/stats", "good", statBody("a", 1))
	require.Equal(t, http.StatusOK, rw.Code)
	rw, _ = do(t, r, http.MethodPost, "/api/stats", "good", statBody("b", 2))
	require.Equal(t, http.StatusOK, rw.Code)

	rw, list := do(t, r, http.MethodGet, "/api/stats", "good", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.EqualValues(t, 2, list["totalRecords"])
}
