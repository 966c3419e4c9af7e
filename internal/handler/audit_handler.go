package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

type auditService interface {
	List(ctx context.Context, actorID string, filter repository.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
	Export(ctx context.Context, actorID string, filter repository.AuditFilter) ([]byte, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param target_type query string false "Target type"
// @Param target_id query string false "Target ID"
// @Param actor_id query string false "Actor ID"
// @Param action query string false "Action"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	filter := auditFilter(c)
	filter.Page, filter.PageSize = pageParams(c)

	logs, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Export godoc
// @Summary Export audit logs as CSV
// @Tags Audit
// @Produce text/csv
// @Param target_type query string false "Target type"
// @Param target_id query string false "Target ID"
// @Param actor_id query string false "Actor ID"
// @Param action query string false "Action"
// @Success 200 {file} file
// @Router /admin/audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	out, err := h.service.Export(c.Request.Context(), actor, auditFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="audit-logs.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

func auditFilter(c *gin.Context) repository.AuditFilter {
	return repository.AuditFilter{
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		ActorID:    c.Query("actor_id"),
		Action:     c.Query("action"),
	}
}
