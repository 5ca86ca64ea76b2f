package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/infradash/infradash-backend/internal/projects/domain"
	"github.com/infradash/infradash-backend/internal/projects/service"
)

type Handler struct {
	svc *service.ProjectService
}

func Register(rg gin.IRouter, svc *service.ProjectService) {
	h := &Handler{svc: svc}

	rg.GET("/projects", h.list)
	rg.GET("/projects/summary", h.summary)
}

func (h *Handler) list(c *gin.Context) {
	filter := domain.ListFilter{
		Region: c.Query("region"),
		Limit:  intQuery(c, "limit"),
		Offset: intQuery(c, "offset"),
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized status"})
			return
		}
		filter.Status = status
	}

	items, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": items, "count": len(items)})
}

func (h *Handler) summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func intQuery(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
