package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/attachments"
	"github.com/automatter/rfptrack/internal/search"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
	"github.com/automatter/rfptrack/pkg/middleware"
)

// Searcher is the query side of the search index, used by the
// passthrough route. *search.Elastic satisfies it.
type Searcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}) (map[string]interface{}, error)
}

// solicitationStatuses is the closed cnStatus set the counts routes
// report on. "negotitation" is misspelled on purpose: that is the value
// stored on existing documents, so do not correct it here.
var solicitationStatuses = []string{
	"new", "researching", "pursuing", "preApproval", "submitted",
	"negotitation", "awarded", "monitor", "foia", "notWon", "notPursuing",
}

// SolicitationHandler owns the solicitations subtree: CRUD mirrored into
// the search index, comments with the parent counter, activity logs,
// status counts, the search passthrough and file attachments.
type SolicitationHandler struct {
	resource *ResourceHandler
	store    store.Store
	mirror   search.Mirror
	searcher Searcher
	files    *attachments.Storage
	index    string
}

func NewSolicitationHandler(resource *ResourceHandler, s store.Store, mirror search.Mirror, searcher Searcher, files *attachments.Storage, index string) *SolicitationHandler {
	return &SolicitationHandler{
		resource: resource,
		store:    s,
		mirror:   mirror,
		searcher: searcher,
		files:    files,
		index:    index,
	}
}

func (h *SolicitationHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/solicitations", func(c *gin.Context) { h.resource.List(c, "solicitations") })
	rg.POST("/solicitations", h.create)
	rg.GET("/solicitations/counts", h.counts)
	rg.GET("/solicitations/counts/summary", h.countsSummary)
	rg.POST("/solicitations/search", h.search)
	rg.GET("/solicitations/:id", func(c *gin.Context) {
		h.resource.GetByID(c, "solicitations", c.Param("id"))
	})
	rg.PATCH("/solicitations/:id", h.patch)
	rg.DELETE("/solicitations/:id", h.remove)
	rg.GET("/solicitations/:id/comments", func(c *gin.Context) {
		h.listSub(c, "comments")
	})
	rg.POST("/solicitations/:id/comments", h.createComment)
	rg.GET("/solicitations/:id/logs", func(c *gin.Context) {
		h.listSub(c, "logs")
	})
	rg.POST("/solicitations/:id/logs", func(c *gin.Context) {
		h.resource.Create(c, "solicitations/"+c.Param("id")+"/logs")
	})
	// The static solicitations tree shadows the generic /:model routes, so
	// every depth the generic route serves has to be registered here too.
	for _, sub := range []string{"comments", "logs"} {
		sub := sub // per-iteration copy; go directive predates Go 1.22 loopvar semantics
		rg.GET("/solicitations/:id/"+sub+"/:subid", func(c *gin.Context) {
			h.resource.GetByID(c, subPath(c, sub), c.Param("subid"))
		})
		rg.PATCH("/solicitations/:id/"+sub+"/:subid", func(c *gin.Context) {
			h.resource.Patch(c, subPath(c, sub), c.Param("subid"))
		})
		rg.DELETE("/solicitations/:id/"+sub+"/:subid", func(c *gin.Context) {
			h.resource.Remove(c, subPath(c, sub), c.Param("subid"))
		})
	}
	rg.GET("/solicitations/:id/attachments", h.listAttachments)
	rg.POST("/solicitations/:id/attachments", h.uploadAttachment)
	rg.GET("/solicitations/:id/attachments/:name", h.downloadAttachment)
}

func (h *SolicitationHandler) create(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	doc := stripControl(body, h.resource.controlPrefix)
	created, err := h.store.Post(c.Request.Context(), "solicitations", doc, middleware.Identity(c))
	if err != nil {
		h.resource.fail(c, "solicitations", err)
		return
	}
	if id, ok := created["id"].(string); ok {
		h.mirror.Post(c.Request.Context(), h.index, id, search.WithSemanticCopies(created))
	}
	h.resource.ok(c, "solicitations", created)
}

func (h *SolicitationHandler) patch(c *gin.Context) {
	id := c.Param("id")
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	partial := stripControl(body, h.resource.controlPrefix)
	updated, err := h.store.Patch(c.Request.Context(), "solicitations", id, partial)
	if err != nil {
		h.resource.fail(c, "solicitations", err)
		return
	}
	h.mirror.Patch(c.Request.Context(), h.index, id, search.WithSemanticCopies(updated))
	h.resource.ok(c, "solicitations", updated)
}

func (h *SolicitationHandler) remove(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.store.Remove(c.Request.Context(), "solicitations", id)
	if err != nil {
		h.resource.fail(c, "solicitations", err)
		return
	}
	h.mirror.Remove(c.Request.Context(), h.index, id)
	h.resource.ok(c, "solicitations", gin.H{"id": removed})
}

// listSub serves the comments/logs subcollections. These keep their own
// envelope {results} instead of the generic list shape.
func subPath(c *gin.Context, sub string) string {
	return "solicitations/" + c.Param("id") + "/" + sub
}

func (h *SolicitationHandler) listSub(c *gin.Context, sub string) {
	path := subPath(c, sub)
	q := store.ParseQuery(c.Request.URL.Query())
	records, err := h.store.Get(c.Request.Context(), path, q)
	if err != nil {
		h.resource.fail(c, path, err)
		return
	}
	h.resource.ok(c, path, gin.H{"results": records})
}

// createComment bumps the parent's commentsCount before creating the
// comment. The two writes are not transactional: a crash in between
// leaves the counter one ahead, and concurrent commenters can under-count
// because the increment is read-modify-write. The reconcile script
// repairs the index side; the counter itself is advisory.
func (h *SolicitationHandler) createComment(c *gin.Context) {
	solID := c.Param("id")
	path := "solicitations/" + solID + "/comments"

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resource.fail(c, path, apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}

	parent, err := h.store.GetByID(c.Request.Context(), "solicitations", solID)
	if err != nil {
		h.resource.fail(c, path, err)
		return
	}
	count := toInt(parent["commentsCount"]) + 1
	if _, err := h.store.Patch(c.Request.Context(), "solicitations", solID, store.Doc{"commentsCount": count}); err != nil {
		h.resource.fail(c, path, err)
		return
	}
	h.mirror.Patch(c.Request.Context(), h.index, solID, store.Doc{"commentsCount": count})

	doc := stripControl(body, h.resource.controlPrefix)
	created, err := h.store.Post(c.Request.Context(), path, doc, middleware.Identity(c))
	if err != nil {
		h.resource.fail(c, path, err)
		return
	}
	h.resource.ok(c, path, created)
}

func (h *SolicitationHandler) search(c *gin.Context) {
	var query map[string]interface{}
	if err := c.ShouldBindJSON(&query); err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(apperr.ErrValidation, "parse body"))
		return
	}
	resp, err := h.searcher.Search(c.Request.Context(), h.index, query)
	if err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(err, "search"))
		return
	}
	h.resource.ok(c, "solicitations", resp)
}

func (h *SolicitationHandler) counts(c *gin.Context) {
	out := gin.H{}
	for _, status := range solicitationStatuses {
		n, err := h.store.Count(c.Request.Context(), "solicitations", store.QueryOptions{
			Filters: map[string]interface{}{"cnStatus": status},
		})
		if err != nil {
			h.resource.fail(c, "solicitations", err)
			return
		}
		out[status] = n
	}
	h.resource.ok(c, "solicitations", out)
}

func (h *SolicitationHandler) countsSummary(c *gin.Context) {
	total, err := h.store.Count(c.Request.Context(), "solicitations", store.QueryOptions{})
	if err != nil {
		h.resource.fail(c, "solicitations", err)
		return
	}
	open := int64(0)
	for _, status := range []string{"new", "researching", "pursuing", "preApproval", "submitted", "negotitation"} {
		n, err := h.store.Count(c.Request.Context(), "solicitations", store.QueryOptions{
			Filters: map[string]interface{}{"cnStatus": status},
		})
		if err != nil {
			h.resource.fail(c, "solicitations", err)
			return
		}
		open += n
	}
	h.resource.ok(c, "solicitations", gin.H{"total": total, "open": open})
}

func (h *SolicitationHandler) attachmentsReady(c *gin.Context) bool {
	if h.files == nil {
		countRequest(c, "solicitations", http.StatusServiceUnavailable)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage not configured"})
		return false
	}
	return true
}

func (h *SolicitationHandler) listAttachments(c *gin.Context) {
	if !h.attachmentsReady(c) {
		return
	}
	infos, err := h.files.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(err, "list attachments"))
		return
	}
	h.resource.ok(c, "solicitations", gin.H{"records": infos, "totalRecords": len(infos)})
}

func (h *SolicitationHandler) uploadAttachment(c *gin.Context) {
	if !h.attachmentsReady(c) {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(apperr.ErrValidation, "missing file field"))
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	if err := h.files.Put(c.Request.Context(), c.Param("id"), header.Filename, contentType, file, header.Size); err != nil {
		h.resource.fail(c, "solicitations", apperr.Wrap(err, "store attachment"))
		return
	}
	h.resource.ok(c, "solicitations", gin.H{"name": header.Filename, "size": header.Size})
}

func (h *SolicitationHandler) downloadAttachment(c *gin.Context) {
	if !h.attachmentsReady(c) {
		return
	}
	name := c.Param("name")
	rc, err := h.files.Get(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.resource.fail(c, "solicitations", err)
			return
		}
		h.resource.fail(c, "solicitations", apperr.Wrap(err, "fetch attachment"))
		return
	}
	defer rc.Close()
	countRequest(c, "solicitations", http.StatusOK)
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Warnf("attachment stream aborted for %s: %v", name, err)
	}
}

func stripControl(body map[string]interface{}, prefix string) store.Doc {
	doc := store.Doc{}
	for key, value := range body {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			continue
		}
		doc[key] = value
	}
	return doc
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
