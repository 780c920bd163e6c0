package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/middleware"
)

// StatHandler serves aggregated stat records. Creates are upserts keyed
// by the record's logical key so the aggregation scripts converge when
// re-run over the same window.
type StatHandler struct {
	resource *ResourceHandler
	store    store.Store
}

func NewStatHandler(resource *ResourceHandler, s store.Store) *StatHandler {
	return &StatHandler{resource: resource, store: s}
}

func (h *StatHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/stats", func(c *gin.Context) { h.resource.List(c, "stats") })
	rg.POST("/stats", h.upsert)
}

func (h *StatHandler) upsert(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resource.fail(c, "stats", apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	doc := stripControl(body, h.resource.controlPrefix)
	key, _ := doc["key"].(string)
	if key == "" {
		h.resource.fail(c, "stats", apperr.Wrap(apperr.ErrValidation, "key is required"))
		return
	}

	existing, err := h.store.Get(c.Request.Context(), "stats", store.QueryOptions{
		Filters: map[string]interface{}{"key": key},
		Limit:   1,
	})
	if err != nil {
		h.resource.fail(c, "stats", err)
		return
	}
	if len(existing) > 0 {
		id, _ := existing[0]["id"].(string)
		updated, err := h.store.Patch(c.Request.Context(), "stats", id, doc)
		if err != nil {
			h.resource.fail(c, "stats", err)
			return
		}
		h.resource.ok(c, "stats", updated)
		return
	}

	created, err := h.store.Post(c.Request.Context(), "stats", doc, middleware.Identity(c))
	if err != nil {
		h.resource.fail(c, "stats", err)
		return
	}
	h.resource.ok(c, "stats", created)
}
