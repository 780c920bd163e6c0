package handlers

import (
	"github.com/gin-gonic/gin"
)

// ScriptLogHandler serves scraper run logs. Shape is enforced by the
// scriptLogs schema at create time; everything else is the generic CRUD.
type ScriptLogHandler struct {
	resource *ResourceHandler
}

func NewScriptLogHandler(resource *ResourceHandler) *ScriptLogHandler {
	return &ScriptLogHandler{resource: resource}
}

func (h *ScriptLogHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/scriptLogs", func(c *gin.Context) { h.resource.List(c, "scriptLogs") })
	rg.POST("/scriptLogs", func(c *gin.Context) { h.resource.Create(c, "scriptLogs") })
	rg.GET("/scriptLogs/:id", func(c *gin.Context) {
		h.resource.GetByID(c, "scriptLogs", c.Param("id"))
	})
}
