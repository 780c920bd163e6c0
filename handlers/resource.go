package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/metrics"
	"github.com/automatter/rfptrack/pkg/middleware"
)

// ResourceHandler serves the parameterized CRUD route family: any
// collection, one optional nesting level, addressed straight from the
// URL. Fixed routes (solicitations, users, stats, ...) register their
// own subtrees, which take precedence over these parameter routes.
type ResourceHandler struct {
	store         store.Store
	controlPrefix string
}

func NewResourceHandler(s store.Store, controlPrefix string) *ResourceHandler {
	if controlPrefix == "" {
		controlPrefix = "$"
	}
	return &ResourceHandler{store: s, controlPrefix: controlPrefix}
}

// reservedModels are route prefixes that must never resolve to a store
// collection through the parameterized routes.
var reservedModels = map[string]bool{
	"ai":      true,
	"login":   true,
	"logout":  true,
	"metrics": true,
	"health":  true,
	"ready":   true,
}

// Register wires the generic routes under the (authenticated) API group.
func (h *ResourceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/:model", h.guard(func(c *gin.Context) {
		h.List(c, c.Param("model"))
	}))
	rg.POST("/:model", h.guard(func(c *gin.Context) {
		h.Create(c, c.Param("model"))
	}))
	rg.GET("/:model/:id", h.guard(func(c *gin.Context) {
		h.GetByID(c, c.Param("model"), c.Param("id"))
	}))
	rg.PATCH("/:model/:id", h.guard(func(c *gin.Context) {
		h.Patch(c, c.Param("model"), c.Param("id"))
	}))
	rg.DELETE("/:model/:id", h.guard(func(c *gin.Context) {
		h.Remove(c, c.Param("model"), c.Param("id"))
	}))
	rg.GET("/:model/:id/:submodel", h.guard(func(c *gin.Context) {
		h.List(c, nestedPath(c))
	}))
	rg.POST("/:model/:id/:submodel", h.guard(func(c *gin.Context) {
		h.Create(c, nestedPath(c))
	}))
	rg.GET("/:model/:id/:submodel/:subid", h.guard(func(c *gin.Context) {
		h.GetByID(c, nestedPath(c), c.Param("subid"))
	}))
	rg.PATCH("/:model/:id/:submodel/:subid", h.guard(func(c *gin.Context) {
		h.Patch(c, nestedPath(c), c.Param("subid"))
	}))
	rg.DELETE("/:model/:id/:submodel/:subid", h.guard(func(c *gin.Context) {
		h.Remove(c, nestedPath(c), c.Param("subid"))
	}))
}

func (h *ResourceHandler) guard(fn gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reservedModels[c.Param("model")] {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		fn(c)
	}
}

func nestedPath(c *gin.Context) string {
	return fmt.Sprintf("%s/%s/%s", c.Param("model"), c.Param("id"), c.Param("submodel"))
}

// List serves GET on a collection: filters, sort and pagination from the
// query-string mini-grammar, plus the total count.
func (h *ResourceHandler) List(c *gin.Context, dbPath string) {
	q := store.ParseQuery(c.Request.URL.Query())
	dbPath = store.JoinPath(q.ParentDBPath, dbPath)

	records, err := h.store.Get(c.Request.Context(), dbPath, q)
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	total, err := h.store.Count(c.Request.Context(), dbPath, q)
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	h.ok(c, dbPath, gin.H{
		"params":       c.Params,
		"records":      records,
		"totalRecords": total,
	})
}

// Create serves POST on a collection. Control fields (prefix configured,
// default "$") steer the request and are stripped before persisting.
func (h *ResourceHandler) Create(c *gin.Context, dbPath string) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, dbPath, apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	parent, _ := body[h.controlPrefix+"parentDbPath"].(string)
	dbPath = store.JoinPath(parent, dbPath)
	doc := stripControl(body, h.controlPrefix)

	created, err := h.store.Post(c.Request.Context(), dbPath, doc, middleware.Identity(c))
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	h.ok(c, dbPath, created)
}

func (h *ResourceHandler) GetByID(c *gin.Context, dbPath, id string) {
	q := store.ParseQuery(c.Request.URL.Query())
	dbPath = store.JoinPath(q.ParentDBPath, dbPath)

	doc, err := h.store.GetByID(c.Request.Context(), dbPath, id)
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	h.ok(c, dbPath, doc)
}

func (h *ResourceHandler) Patch(c *gin.Context, dbPath, id string) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, dbPath, apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	parent, _ := body[h.controlPrefix+"parentDbPath"].(string)
	dbPath = store.JoinPath(parent, dbPath)
	partial := stripControl(body, h.controlPrefix)

	updated, err := h.store.Patch(c.Request.Context(), dbPath, id, partial)
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	h.ok(c, dbPath, updated)
}

func (h *ResourceHandler) Remove(c *gin.Context, dbPath, id string) {
	q := store.ParseQuery(c.Request.URL.Query())
	dbPath = store.JoinPath(q.ParentDBPath, dbPath)

	removed, err := h.store.Remove(c.Request.Context(), dbPath, id)
	if err != nil {
		h.fail(c, dbPath, err)
		return
	}
	h.ok(c, dbPath, gin.H{"id": removed})
}

func (h *ResourceHandler) ok(c *gin.Context, dbPath string, body interface{}) {
	countRequest(c, dbPath, http.StatusOK)
	c.JSON(http.StatusOK, body)
}

func (h *ResourceHandler) fail(c *gin.Context, dbPath string, err error) {
	status := apperr.Status(err)
	countRequest(c, dbPath, status)
	c.JSON(status, gin.H{"error": err.Error()})
}

func countRequest(c *gin.Context, dbPath string, status int) {
	model := dbPath
	if i := strings.IndexByte(model, '/'); i >= 0 {
		model = model[:i]
	}
	metrics.ResourceRequests.WithLabelValues(model, c.Request.Method, fmt.Sprintf("%d", status)).Inc()
}
