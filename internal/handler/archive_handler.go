package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/middleware"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

type archiveReader interface {
	ListConferences(ctx context.Context) ([]models.Conference, bool, error)
	ListVolumes(ctx context.Context) ([]models.Volume, bool, error)
	GetVolume(ctx context.Context, id string) (*models.Volume, bool, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssuePapers(ctx context.Context, issueID string) ([]models.ArchivedPaper, bool, error)
	GetArchivedPaper(ctx context.Context, id string) (*models.ArchivedPaper, error)
}

type archiveWriter interface {
	CreateConference(ctx context.Context, actorID string, req dto.ConferenceRequest) (*models.Conference, error)
	UpdateConference(ctx context.Context, actorID, id string, req dto.ConferenceRequest) (*models.Conference, error)
	DeleteConference(ctx context.Context, actorID, id string) error
	CreateVolume(ctx context.Context, actorID string, req dto.VolumeRequest) (*models.Volume, error)
	UpdateVolume(ctx context.Context, actorID, id string, req dto.VolumeRequest) (*models.Volume, error)
	DeleteVolume(ctx context.Context, actorID, id string) error
	CreateIssue(ctx context.Context, actorID string, req dto.IssueRequest) (*models.Issue, error)
	UpdateIssue(ctx context.Context, actorID, id string, req dto.IssueRequest) (*models.Issue, error)
	DeleteIssue(ctx context.Context, actorID, id string) error
	CreateArchivedPaper(ctx context.Context, actorID string, req dto.ArchivedPaperRequest, upload *service.FileUpload) (*models.ArchivedPaper, error)
	UpdateArchivedPaper(ctx context.Context, actorID, id string, req dto.ArchivedPaperRequest) (*models.ArchivedPaper, error)
	DeleteArchivedPaper(ctx context.Context, actorID, id string) error
}

type archiveService interface {
	archiveReader
	archiveWriter
}

// ArchiveHandler serves the public archive and its editorial management endpoints.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(service archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: service}
}

func publicResult(c *gin.Context, data interface{}, hit bool) {
	middleware.SetArchiveCacheHit(c, hit)
	response.Public(c, data, middleware.ArchiveMeta(c))
}

// ListConferences godoc
// @Summary List conferences
// @Tags Archive
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archive/conferences [get]
func (h *ArchiveHandler) ListConferences(c *gin.Context) {
	items, hit, err := h.service.ListConferences(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, items, hit)
}

// ListVolumes godoc
// @Summary List volumes
// @Description Volumes newest first with their issues
// @Tags Archive
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archive/volumes [get]
func (h *ArchiveHandler) ListVolumes(c *gin.Context) {
	items, hit, err := h.service.ListVolumes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, items, hit)
}

// GetVolume godoc
// @Summary Get volume
// @Tags Archive
// @Produce json
// @Param id path string true "Volume ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archive/volumes/{id} [get]
func (h *ArchiveHandler) GetVolume(c *gin.Context) {
	volume, hit, err := h.service.GetVolume(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, volume, hit)
}

// GetIssue godoc
// @Summary Get issue
// @Tags Archive
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /archive/issues/{id} [get]
func (h *ArchiveHandler) GetIssue(c *gin.Context) {
	issue, err := h.service.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, issue, false)
}

// ListIssuePapers godoc
// @Summary List issue papers
// @Tags Archive
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /archive/issues/{id}/papers [get]
func (h *ArchiveHandler) ListIssuePapers(c *gin.Context) {
	items, hit, err := h.service.ListIssuePapers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, items, hit)
}

// GetArchivedPaper godoc
// @Summary Get archived paper
// @Tags Archive
// @Produce json
// @Param id path string true "Archived paper ID"
// @Success 200 {object} response.Envelope
// @Router /archive/papers/{id} [get]
func (h *ArchiveHandler) GetArchivedPaper(c *gin.Context) {
	paper, err := h.service.GetArchivedPaper(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	publicResult(c, paper, false)
}

// CreateConference godoc
// @Summary Create conference
// @Tags Archive
// @Accept json
// @Produce json
// @Param payload body dto.ConferenceRequest true "Conference"
// @Success 201 {object} response.Envelope
// @Router /admin/archive/conferences [post]
func (h *ArchiveHandler) CreateConference(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ConferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid conference payload"))
		return
	}
	item, err := h.service.CreateConference(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateConference godoc
// @Summary Update conference
// @Tags Archive
// @Accept json
// @Produce json
// @Param id path string true "Conference ID"
// @Param payload body dto.ConferenceRequest true "Conference"
// @Success 200 {object} response.Envelope
// @Router /admin/archive/conferences/{id} [put]
func (h *ArchiveHandler) UpdateConference(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ConferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid conference payload"))
		return
	}
	item, err := h.service.UpdateConference(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteConference godoc
// @Summary Delete conference
// @Tags Archive
// @Param id path string true "Conference ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/archive/conferences/{id} [delete]
func (h *ArchiveHandler) DeleteConference(c *gin.Context) {
	h.remove(c, h.service.DeleteConference)
}

// CreateVolume godoc
// @Summary Create volume
// @Tags Archive
// @Accept json
// @Produce json
// @Param payload body dto.VolumeRequest true "Volume"
// @Success 201 {object} response.Envelope
// @Router /admin/archive/volumes [post]
func (h *ArchiveHandler) CreateVolume(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid volume payload"))
		return
	}
	item, err := h.service.CreateVolume(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateVolume godoc
// @Summary Update volume
// @Tags Archive
// @Accept json
// @Produce json
// @Param id path string true "Volume ID"
// @Param payload body dto.VolumeRequest true "Volume"
// @Success 200 {object} response.Envelope
// @Router /admin/archive/volumes/{id} [put]
func (h *ArchiveHandler) UpdateVolume(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid volume payload"))
		return
	}
	item, err := h.service.UpdateVolume(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteVolume godoc
// @Summary Delete volume
// @Tags Archive
// @Param id path string true "Volume ID"
// @Success 204
// @Router /admin/archive/volumes/{id} [delete]
func (h *ArchiveHandler) DeleteVolume(c *gin.Context) {
	h.remove(c, h.service.DeleteVolume)
}

// CreateIssue godoc
// @Summary Create issue
// @Tags Archive
// @Accept json
// @Produce json
// @Param payload body dto.IssueRequest true "Issue"
// @Success 201 {object} response.Envelope
// @Router /admin/archive/issues [post]
func (h *ArchiveHandler) CreateIssue(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid issue payload"))
		return
	}
	item, err := h.service.CreateIssue(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateIssue godoc
// @Summary Update issue
// @Tags Archive
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body dto.IssueRequest true "Issue"
// @Success 200 {object} response.Envelope
// @Router /admin/archive/issues/{id} [put]
func (h *ArchiveHandler) UpdateIssue(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid issue payload"))
		return
	}
	item, err := h.service.UpdateIssue(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteIssue godoc
// @Summary Delete issue
// @Tags Archive
// @Param id path string true "Issue ID"
// @Success 204
// @Router /admin/archive/issues/{id} [delete]
func (h *ArchiveHandler) DeleteIssue(c *gin.Context) {
	h.remove(c, h.service.DeleteIssue)
}

// CreateArchivedPaper godoc
// @Summary Add archived paper
// @Description Accepts either a PDF upload or an external file_url
// @Tags Archive
// @Accept multipart/form-data
// @Produce json
// @Param issue_id formData string true "Issue"
// @Param title formData string true "Title"
// @Param authors formData []string false "Authors" collectionFormat(multi)
// @Param file formData file false "PDF"
// @Success 201 {object} response.Envelope
// @Router /admin/archive/papers [post]
func (h *ArchiveHandler) CreateArchivedPaper(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ArchivedPaperRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, bindError(err, "invalid archived paper payload"))
		return
	}
	upload, closeFn, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	item, err := h.service.CreateArchivedPaper(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateArchivedPaper godoc
// @Summary Update archived paper metadata
// @Tags Archive
// @Accept json
// @Produce json
// @Param id path string true "Archived paper ID"
// @Param payload body dto.ArchivedPaperRequest true "Archived paper"
// @Success 200 {object} response.Envelope
// @Router /admin/archive/papers/{id} [put]
func (h *ArchiveHandler) UpdateArchivedPaper(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ArchivedPaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid archived paper payload"))
		return
	}
	item, err := h.service.UpdateArchivedPaper(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteArchivedPaper godoc
// @Summary Delete archived paper
// @Tags Archive
// @Param id path string true "Archived paper ID"
// @Success 204
// @Router /admin/archive/papers/{id} [delete]
func (h *ArchiveHandler) DeleteArchivedPaper(c *gin.Context) {
	h.remove(c, h.service.DeleteArchivedPaper)
}

func (h *ArchiveHandler) remove(c *gin.Context, del func(ctx context.Context, actorID, id string) error) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := del(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
