package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/schema"
	"github.com/automatter/rfptrack/internal/store"
)

// UserHandler serves the users collection. Reads go through the generic
// handlers; updates are restricted to a small schema-checked profile
// shape.
type UserHandler struct {
	resource *ResourceHandler
	store    store.Store
	schemas  *schema.Registry
}

func NewUserHandler(resource *ResourceHandler, s store.Store, schemas *schema.Registry) *UserHandler {
	return &UserHandler{resource: resource, store: s, schemas: schemas}
}

func (h *UserHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/users", func(c *gin.Context) { h.resource.List(c, "users") })
	rg.GET("/users/:id", func(c *gin.Context) {
		h.resource.GetByID(c, "users", c.Param("id"))
	})
	rg.PATCH("/users/:id", h.patch)
}

func (h *UserHandler) patch(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resource.fail(c, "users", apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	partial := stripControl(body, h.resource.controlPrefix)
	if err := h.schemas.Validate("users.patch", partial); err != nil {
		h.resource.fail(c, "users", err)
		return
	}
	updated, err := h.store.Patch(c.Request.Context(), "users", c.Param("id"), partial)
	if err != nil {
		h.resource.fail(c, "users", err)
		return
	}
	h.resource.ok(c, "users", updated)
}
