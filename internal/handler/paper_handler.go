package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

type paperService interface {
	Create(ctx context.Context, actorID string, req dto.CreatePaperRequest, upload *service.FileUpload) (*models.Paper, error)
	Get(ctx context.Context, actorID, paperID string) (*models.Paper, error)
	List(ctx context.Context, actorID string, filter models.PaperFilter) ([]models.Paper, *models.Pagination, error)
	Delete(ctx context.Context, actorID, paperID, reason string) error
}

type paperStatusService interface {
	UpdateStatus(ctx context.Context, actorID, paperID string, newStatus models.PaperStatus) (*models.Paper, error)
}

type doiService interface {
	AssignDOI(ctx context.Context, actorID, paperID string) (*models.DOIResult, error)
	RevokeDOI(ctx context.Context, actorID, paperID, reason string) (*models.DOIResult, error)
}

// PaperHandler serves submission, lifecycle and DOI endpoints.
type PaperHandler struct {
	papers paperService
	status paperStatusService
	doi    doiService
}

// NewPaperHandler constructs a PaperHandler.
func NewPaperHandler(papers paperService, status paperStatusService, doi doiService) *PaperHandler {
	return &PaperHandler{papers: papers, status: status, doi: doi}
}

// Create godoc
// @Summary Submit paper
// @Description Create a SUBMITTED paper with its manuscript
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param abstract formData string true "Abstract"
// @Param category_id formData string true "Category"
// @Param keywords formData string true "Comma separated keywords"
// @Param authors formData string true "JSON array of authors"
// @Param file formData file true "Manuscript"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /papers [post]
func (h *PaperHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	req := dto.CreatePaperRequest{
		Title:      c.PostForm("title"),
		Abstract:   c.PostForm("abstract"),
		CategoryID: c.PostForm("category_id"),
		Keywords:   splitKeywords(c.PostForm("keywords")),
	}
	if raw := c.PostForm("authors"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Authors); err != nil {
			response.Error(c, bindError(err, "authors must be a JSON array"))
			return
		}
	}

	upload, closeFn, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	paper, err := h.papers.Create(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, paper)
}

// List godoc
// @Summary List papers
// @Tags Papers
// @Produce json
// @Param status query string false "Status filter"
// @Param category_id query string false "Category filter"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var filter models.PaperFilter
	filter.Page, filter.PageSize = pageParams(c)
	if status := c.Query("status"); status != "" {
		s := models.PaperStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	filter.CategoryID = c.Query("category_id")
	filter.Search = c.Query("search")

	papers, pagination, err := h.papers.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, papers, pagination)
}

// Get godoc
// @Summary Get paper
// @Tags Papers
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	paper, err := h.papers.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Delete godoc
// @Summary Delete paper
// @Tags Papers
// @Accept json
// @Param id path string true "Paper ID"
// @Param payload body dto.ReasonRequest true "Reason"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /papers/{id} [delete]
func (h *PaperHandler) Delete(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "reason is required"))
		return
	}
	if err := h.papers.Delete(c.Request.Context(), actor, c.Param("id"), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateStatus godoc
// @Summary Change paper status
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param payload body dto.UpdatePaperStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /papers/{id}/status [patch]
func (h *PaperHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.UpdatePaperStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	paper, err := h.status.UpdateStatus(c.Request.Context(), actor, c.Param("id"), models.PaperStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// AssignDOI godoc
// @Summary Assign DOI
// @Description Mint a DOI for an accepted or published paper. An existing DOI is returned with DOI_ALREADY_ASSIGNED.
// @Tags DOI
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /papers/{id}/doi [post]
func (h *PaperHandler) AssignDOI(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	result, err := h.doi.AssignDOI(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		if errors.Is(err, appErrors.ErrDOIAlreadyAssigned) && result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RevokeDOI godoc
// @Summary Revoke DOI
// @Tags DOI
// @Accept json
// @Produce json
// @Param id path string true "Paper ID"
// @Param payload body dto.ReasonRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /papers/{id}/doi [delete]
func (h *PaperHandler) RevokeDOI(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "reason is required"))
		return
	}
	result, err := h.doi.RevokeDOI(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// formUpload opens the multipart file under field. A missing file yields a nil upload.
func formUpload(c *gin.Context, field string) (*service.FileUpload, func(), error) {
	noop := func() {}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, bindError(err, "invalid multipart payload")
	}
	src, err := header.Open()
	if err != nil {
		return nil, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &service.FileUpload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     src,
	}, func() { _ = src.Close() }, nil
}
