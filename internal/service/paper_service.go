package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/storage"
)

type paperStore interface {
	Create(ctx context.Context, paper *models.Paper) error
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	ListAuthors(ctx context.Context, paperID string) ([]models.PaperAuthor, error)
	List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error)
	SetRawFileURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// hotStorage is where manuscripts and archive files are uploaded.
type hotStorage interface {
	Upload(ctx context.Context, r io.Reader, objectPath string, opts storage.UploadOptions) (string, error)
	Delete(ctx context.Context, objectPath string) error
	ObjectPath(publicURL string) (string, bool)
}

// FileUpload is a file received from a multipart request.
type FileUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

// UploadPolicy limits accepted files.
type UploadPolicy struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

func (p UploadPolicy) check(upload *FileUpload) error {
	if upload == nil || upload.Content == nil {
		return validationError("file is required")
	}
	if upload.Size <= 0 {
		return validationError("file is empty")
	}
	if p.MaxFileSize > 0 && upload.Size > p.MaxFileSize {
		return validationError(fmt.Sprintf("file exceeds %d bytes", p.MaxFileSize))
	}
	if len(p.AllowedMIMEs) == 0 {
		return nil
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(upload.ContentType, ";", 2)[0]))
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return nil
		}
	}
	return validationError(fmt.Sprintf("file type %q is not allowed", upload.ContentType))
}

// PaperService handles manuscript intake, listing and removal.
type PaperService struct {
	papers    paperStore
	storage   hotStorage
	authz     permissionChecker
	audit     auditRecorder
	tx        txRunner
	validator *validator.Validate
	policy    UploadPolicy
	logger    *zap.Logger
}

// NewPaperService constructs a PaperService.
func NewPaperService(papers paperStore, storage hotStorage, authz permissionChecker, audit auditRecorder, tx txRunner, validate *validator.Validate, policy UploadPolicy, logger *zap.Logger) *PaperService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperService{
		papers:    papers,
		storage:   storage,
		authz:     authz,
		audit:     audit,
		tx:        tx,
		validator: validate,
		policy:    policy,
		logger:    logger,
	}
}

// Create stores a new SUBMITTED paper with its authors and manuscript. The row and the file
// land together: an upload failure rolls the insert back, and a failed commit removes the file.
func (s *PaperService) Create(ctx context.Context, actorID string, req dto.CreatePaperRequest, upload *FileUpload) (*models.Paper, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermPaperCreate)
	if err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Abstract = strings.TrimSpace(req.Abstract)
	req.Keywords = normalizeKeywords(req.Keywords)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid paper payload")
	}
	authors, err := buildAuthors(req.Authors, actor)
	if err != nil {
		return nil, err
	}
	if err := s.policy.check(upload); err != nil {
		return nil, err
	}

	paper := &models.Paper{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Abstract:    req.Abstract,
		Keywords:    models.StringArray(req.Keywords),
		CategoryID:  req.CategoryID,
		Status:      models.PaperStatusSubmitted,
		SubmittedBy: actor.ID,
		Authors:     authors,
	}
	objectPath := fmt.Sprintf("papers/%s/%s", paper.ID, storage.SanitizeFilename(upload.Filename))

	var uploaded bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.papers.Create(ctx, paper); err != nil {
			return err
		}
		url, err := s.storage.Upload(ctx, upload.Content, objectPath, storage.UploadOptions{ContentType: upload.ContentType})
		if err != nil {
			if errors.Is(err, storage.ErrObjectExists) {
				return appErrors.Clone(appErrors.ErrConflict, "manuscript already exists")
			}
			return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to store manuscript")
		}
		uploaded = true
		if err := s.papers.SetRawFileURL(ctx, paper.ID, url); err != nil {
			return err
		}
		paper.RawFileURL = url
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionCreatePaper,
			TargetID:   paper.ID,
			TargetType: models.AuditTargetPaper,
			Actor:      actor,
			Metadata:   map[string]interface{}{"title": paper.Title, "authors": len(paper.Authors)},
		})
	})
	if err != nil {
		if uploaded {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), objectPath); delErr != nil {
				s.logger.Error("failed to remove orphaned manuscript", zap.String("path", objectPath), zap.Error(delErr))
			}
		}
		return nil, appError(err, "failed to create paper")
	}

	s.logger.Info("paper submitted", zap.String("paper_id", paper.ID), zap.String("actor_id", actor.ID))
	return paper, nil
}

// Get returns a paper with its authors. Authors only see their own submissions.
func (s *PaperService) Get(ctx context.Context, actorID, paperID string) (*models.Paper, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermPaperRead)
	if err != nil {
		return nil, err
	}
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, lookupError(err, "paper not found", "failed to load paper")
	}
	if actor.Role == models.RoleAuthor && paper.SubmittedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	authors, err := s.papers.ListAuthors(ctx, paper.ID)
	if err != nil {
		return nil, appError(err, "failed to load paper authors")
	}
	paper.Authors = authors
	return paper, nil
}

// List returns papers matching filter. Authors are restricted to their own submissions.
func (s *PaperService) List(ctx context.Context, actorID string, filter models.PaperFilter) ([]models.Paper, *models.Pagination, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermPaperRead)
	if err != nil {
		return nil, nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, validationError("unknown paper status " + string(*filter.Status))
	}
	if actor.Role == models.RoleAuthor {
		filter.SubmittedBy = actor.ID
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	papers, total, err := s.papers.List(ctx, filter)
	if err != nil {
		return nil, nil, appError(err, "failed to list papers")
	}
	return papers, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Delete removes a paper and its authors, then drops the stored manuscript.
func (s *PaperService) Delete(ctx context.Context, actorID, paperID, reason string) error {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermPaperDelete)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError("reason is required")
	}
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return lookupError(err, "paper not found", "failed to load paper")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.papers.Delete(ctx, paper.ID); err != nil {
			return lookupError(err, "paper not found", "failed to delete paper")
		}
		var doi interface{}
		if paper.DOI != nil {
			doi = *paper.DOI
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionDeletePaper,
			TargetID:   paper.ID,
			TargetType: models.AuditTargetPaper,
			Actor:      actor,
			Metadata: map[string]interface{}{
				"title":  paper.Title,
				"doi":    doi,
				"status": paper.Status,
				"reason": reason,
			},
		})
	})
	if err != nil {
		return appError(err, "failed to delete paper")
	}

	if objectPath, ok := s.storage.ObjectPath(paper.RawFileURL); ok {
		if err := s.storage.Delete(ctx, objectPath); err != nil {
			s.logger.Warn("failed to remove manuscript of deleted paper", zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}
	return nil
}

// buildAuthors assigns byline positions and resolves the corresponding author.
func buildAuthors(inputs []dto.PaperAuthorInput, actor *models.User) ([]models.PaperAuthor, error) {
	authors := make([]models.PaperAuthor, 0, len(inputs))
	corresponding := 0
	for i, in := range inputs {
		author := models.PaperAuthor{
			Name:            strings.TrimSpace(in.Name),
			Email:           strings.ToLower(strings.TrimSpace(in.Email)),
			Affiliation:     strings.TrimSpace(in.Affiliation),
			Position:        i + 1,
			IsCorresponding: in.IsCorresponding,
		}
		if in.IsCorresponding {
			corresponding++
		}
		if strings.EqualFold(author.Email, actor.Email) {
			id := actor.ID
			author.UserID = &id
		}
		authors = append(authors, author)
	}
	if corresponding > 1 {
		return nil, validationError("only one corresponding author is allowed")
	}
	if corresponding == 0 && len(authors) > 0 {
		authors[0].IsCorresponding = true
	}
	return authors, nil
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
