package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/storage"
)

type archiveStore interface {
	ListConferences(ctx context.Context) ([]models.Conference, error)
	GetConference(ctx context.Context, id string) (*models.Conference, error)
	CreateConference(ctx context.Context, conf *models.Conference) error
	UpdateConference(ctx context.Context, conf *models.Conference) error
	DeleteConference(ctx context.Context, id string) error
	CountIssuesByConference(ctx context.Context, conferenceID string) (int, error)

	ListVolumes(ctx context.Context) ([]models.Volume, error)
	GetVolume(ctx context.Context, id string) (*models.Volume, error)
	VolumeNumberTaken(ctx context.Context, year, number int, excludeID string) (bool, error)
	CreateVolume(ctx context.Context, vol *models.Volume) error
	UpdateVolume(ctx context.Context, vol *models.Volume) error
	DeleteVolume(ctx context.Context, id string) error
	CountIssuesByVolume(ctx context.Context, volumeID string) (int, error)

	ListIssuesByVolume(ctx context.Context, volumeID string) ([]models.Issue, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	IssueNumberTaken(ctx context.Context, volumeID string, number int, excludeID string) (bool, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	CountPapersByIssue(ctx context.Context, issueID string) (int, error)

	ListPapersByIssue(ctx context.Context, issueID string) ([]models.ArchivedPaper, error)
	GetArchivedPaper(ctx context.Context, id string) (*models.ArchivedPaper, error)
	CreateArchivedPaper(ctx context.Context, paper *models.ArchivedPaper) error
	UpdateArchivedPaper(ctx context.Context, paper *models.ArchivedPaper) error
	DeleteArchivedPaper(ctx context.Context, id string) error
}

const (
	cacheKeyConferences = "archive:conferences"
	cacheKeyVolumes     = "archive:volumes"
)

func volumeCacheKey(id string) string      { return "archive:volume:" + id }
func issuePapersCacheKey(id string) string { return "archive:issue:" + id + ":papers" }

// ArchiveService manages the Conference, Volume, Issue and ArchivedPaper hierarchy.
// Reads are public; every write is permission checked and audited.
type ArchiveService struct {
	repo      archiveStore
	storage   hotStorage
	authz     permissionChecker
	audit     auditRecorder
	tx        txRunner
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	policy    UploadPolicy
	logger    *zap.Logger
}

// NewArchiveService constructs an ArchiveService. cache may be nil.
func NewArchiveService(repo archiveStore, storage hotStorage, authz permissionChecker, audit auditRecorder, tx txRunner, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, policy UploadPolicy, logger *zap.Logger) *ArchiveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		repo:      repo,
		storage:   storage,
		authz:     authz,
		audit:     audit,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		policy:    policy,
		logger:    logger,
	}
}

// ListConferences returns all conferences. The bool reports a cache hit.
func (s *ArchiveService) ListConferences(ctx context.Context) ([]models.Conference, bool, error) {
	return cachedLoad(ctx, s.cache, cacheKeyConferences, s.cacheTTL, func() ([]models.Conference, error) {
		rows, err := s.repo.ListConferences(ctx)
		if err != nil {
			return nil, appError(err, "failed to list conferences")
		}
		return rows, nil
	})
}

// ListVolumes returns volumes newest first.
func (s *ArchiveService) ListVolumes(ctx context.Context) ([]models.Volume, bool, error) {
	return cachedLoad(ctx, s.cache, cacheKeyVolumes, s.cacheTTL, func() ([]models.Volume, error) {
		rows, err := s.repo.ListVolumes(ctx)
		if err != nil {
			return nil, appError(err, "failed to list volumes")
		}
		return rows, nil
	})
}

// GetVolume returns a volume with its issues in issue number order.
func (s *ArchiveService) GetVolume(ctx context.Context, id string) (*models.Volume, bool, error) {
	return cachedLoad(ctx, s.cache, volumeCacheKey(id), s.cacheTTL, func() (*models.Volume, error) {
		vol, err := s.repo.GetVolume(ctx, id)
		if err != nil {
			return nil, lookupError(err, "volume not found", "failed to load volume")
		}
		issues, err := s.repo.ListIssuesByVolume(ctx, id)
		if err != nil {
			return nil, appError(err, "failed to list issues")
		}
		vol.Issues = issues
		return vol, nil
	})
}

// GetIssue returns one issue.
func (s *ArchiveService) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		return nil, lookupError(err, "issue not found", "failed to load issue")
	}
	return issue, nil
}

// ListIssuePapers returns the papers of an issue in page order, each reported as PUBLISHED.
func (s *ArchiveService) ListIssuePapers(ctx context.Context, issueID string) ([]models.ArchivedPaper, bool, error) {
	return cachedLoad(ctx, s.cache, issuePapersCacheKey(issueID), s.cacheTTL, func() ([]models.ArchivedPaper, error) {
		if _, err := s.repo.GetIssue(ctx, issueID); err != nil {
			return nil, lookupError(err, "issue not found", "failed to load issue")
		}
		papers, err := s.repo.ListPapersByIssue(ctx, issueID)
		if err != nil {
			return nil, appError(err, "failed to list archived papers")
		}
		return models.WithPublishedStatus(papers), nil
	})
}

// GetArchivedPaper returns one archived paper reported as PUBLISHED.
func (s *ArchiveService) GetArchivedPaper(ctx context.Context, id string) (*models.ArchivedPaper, error) {
	paper, err := s.repo.GetArchivedPaper(ctx, id)
	if err != nil {
		return nil, lookupError(err, "archived paper not found", "failed to load archived paper")
	}
	paper.Status = models.PaperStatusPublished
	return paper, nil
}

// CreateConference adds a conference.
func (s *ArchiveService) CreateConference(ctx context.Context, actorID string, req dto.ConferenceRequest) (*models.Conference, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelConference, "create")
	if err != nil {
		return nil, err
	}
	if err := s.validateConference(req); err != nil {
		return nil, err
	}
	conf := &models.Conference{}
	applyConference(conf, req)
	err = s.write(ctx, actor, models.AuditActionCreateConference, models.AuditTargetConference, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.repo.CreateConference(ctx, conf); err != nil {
			return "", nil, err
		}
		return conf.ID, map[string]interface{}{"name": conf.Name}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to create conference")
	}
	s.invalidate(ctx, cacheKeyConferences)
	return conf, nil
}

// UpdateConference replaces the fields of a conference.
func (s *ArchiveService) UpdateConference(ctx context.Context, actorID, id string, req dto.ConferenceRequest) (*models.Conference, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelConference, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validateConference(req); err != nil {
		return nil, err
	}
	conf, err := s.repo.GetConference(ctx, id)
	if err != nil {
		return nil, lookupError(err, "conference not found", "failed to load conference")
	}
	applyConference(conf, req)
	err = s.write(ctx, actor, models.AuditActionUpdateConference, models.AuditTargetConference, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.repo.UpdateConference(ctx, conf); err != nil {
			return "", nil, lookupError(err, "conference not found", "failed to update conference")
		}
		return conf.ID, map[string]interface{}{"name": conf.Name}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to update conference")
	}
	s.invalidate(ctx, cacheKeyConferences)
	return conf, nil
}

// DeleteConference removes a conference that no issue references.
func (s *ArchiveService) DeleteConference(ctx context.Context, actorID, id string) error {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelConference, "delete")
	if err != nil {
		return err
	}
	conf, err := s.repo.GetConference(ctx, id)
	if err != nil {
		return lookupError(err, "conference not found", "failed to load conference")
	}
	err = s.write(ctx, actor, models.AuditActionDeleteConference, models.AuditTargetConference, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.requireEmpty(s.repo.CountIssuesByConference(ctx, conf.ID)); err != nil {
			return "", nil, err
		}
		if err := s.repo.DeleteConference(ctx, conf.ID); err != nil {
			return "", nil, lookupError(err, "conference not found", "failed to delete conference")
		}
		return conf.ID, map[string]interface{}{"name": conf.Name}, nil
	})
	if err != nil {
		return appError(err, "failed to delete conference")
	}
	s.invalidate(ctx, cacheKeyConferences)
	return nil
}

// CreateVolume adds a volume with a number unique within its year.
func (s *ArchiveService) CreateVolume(ctx context.Context, actorID string, req dto.VolumeRequest) (*models.Volume, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelVolume, "create")
	if err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid volume payload"); err != nil {
		return nil, err
	}
	vol := &models.Volume{VolumeNumber: req.VolumeNumber, Year: req.Year, Title: strings.TrimSpace(req.Title)}
	err = s.write(ctx, actor, models.AuditActionCreateVolume, models.AuditTargetVolume, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.requireFreeVolumeNumber(ctx, vol.Year, vol.VolumeNumber, ""); err != nil {
			return "", nil, err
		}
		if err := s.repo.CreateVolume(ctx, vol); err != nil {
			return "", nil, err
		}
		return vol.ID, map[string]interface{}{"volume_number": vol.VolumeNumber, "year": vol.Year}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to create volume")
	}
	s.invalidate(ctx, cacheKeyVolumes)
	return vol, nil
}

// UpdateVolume replaces the fields of a volume.
func (s *ArchiveService) UpdateVolume(ctx context.Context, actorID, id string, req dto.VolumeRequest) (*models.Volume, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelVolume, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid volume payload"); err != nil {
		return nil, err
	}
	vol, err := s.repo.GetVolume(ctx, id)
	if err != nil {
		return nil, lookupError(err, "volume not found", "failed to load volume")
	}
	previous := map[string]interface{}{"volume_number": vol.VolumeNumber, "year": vol.Year}
	vol.VolumeNumber, vol.Year, vol.Title = req.VolumeNumber, req.Year, strings.TrimSpace(req.Title)
	err = s.write(ctx, actor, models.AuditActionUpdateVolume, models.AuditTargetVolume, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.requireFreeVolumeNumber(ctx, vol.Year, vol.VolumeNumber, vol.ID); err != nil {
			return "", nil, err
		}
		if err := s.repo.UpdateVolume(ctx, vol); err != nil {
			return "", nil, lookupError(err, "volume not found", "failed to update volume")
		}
		return vol.ID, map[string]interface{}{
			"from": previous,
			"to":   map[string]interface{}{"volume_number": vol.VolumeNumber, "year": vol.Year},
		}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to update volume")
	}
	s.invalidate(ctx, cacheKeyVolumes, volumeCacheKey(vol.ID))
	return vol, nil
}

// DeleteVolume removes a volume that has no issues.
func (s *ArchiveService) DeleteVolume(ctx context.Context, actorID, id string) error {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelVolume, "delete")
	if err != nil {
		return err
	}
	vol, err := s.repo.GetVolume(ctx, id)
	if err != nil {
		return lookupError(err, "volume not found", "failed to load volume")
	}
	err = s.write(ctx, actor, models.AuditActionDeleteVolume, models.AuditTargetVolume, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.requireEmpty(s.repo.CountIssuesByVolume(ctx, vol.ID)); err != nil {
			return "", nil, err
		}
		if err := s.repo.DeleteVolume(ctx, vol.ID); err != nil {
			return "", nil, lookupError(err, "volume not found", "failed to delete volume")
		}
		return vol.ID, map[string]interface{}{"volume_number": vol.VolumeNumber, "year": vol.Year}, nil
	})
	if err != nil {
		return appError(err, "failed to delete volume")
	}
	s.invalidate(ctx, cacheKeyVolumes, volumeCacheKey(vol.ID))
	return nil
}

// CreateIssue adds an issue to an existing volume.
func (s *ArchiveService) CreateIssue(ctx context.Context, actorID string, req dto.IssueRequest) (*models.Issue, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelIssue, "create")
	if err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid issue payload"); err != nil {
		return nil, err
	}
	issue := &models.Issue{}
	applyIssue(issue, req)
	err = s.write(ctx, actor, models.AuditActionCreateIssue, models.AuditTargetIssue, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.checkIssueRefs(ctx, issue, ""); err != nil {
			return "", nil, err
		}
		if err := s.repo.CreateIssue(ctx, issue); err != nil {
			return "", nil, err
		}
		return issue.ID, map[string]interface{}{"volume_id": issue.VolumeID, "issue_number": issue.IssueNumber}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to create issue")
	}
	s.invalidate(ctx, volumeCacheKey(issue.VolumeID))
	return issue, nil
}

// UpdateIssue replaces the fields of an issue, possibly moving it to another volume.
func (s *ArchiveService) UpdateIssue(ctx context.Context, actorID, id string, req dto.IssueRequest) (*models.Issue, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelIssue, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid issue payload"); err != nil {
		return nil, err
	}
	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		return nil, lookupError(err, "issue not found", "failed to load issue")
	}
	previousVolume := issue.VolumeID
	applyIssue(issue, req)
	err = s.write(ctx, actor, models.AuditActionUpdateIssue, models.AuditTargetIssue, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.checkIssueRefs(ctx, issue, issue.ID); err != nil {
			return "", nil, err
		}
		if err := s.repo.UpdateIssue(ctx, issue); err != nil {
			return "", nil, lookupError(err, "issue not found", "failed to update issue")
		}
		return issue.ID, map[string]interface{}{"volume_id": issue.VolumeID, "issue_number": issue.IssueNumber}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to update issue")
	}
	s.invalidate(ctx, volumeCacheKey(previousVolume), volumeCacheKey(issue.VolumeID), issuePapersCacheKey(issue.ID))
	return issue, nil
}

// DeleteIssue removes an issue that has no papers.
func (s *ArchiveService) DeleteIssue(ctx context.Context, actorID, id string) error {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelIssue, "delete")
	if err != nil {
		return err
	}
	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		return lookupError(err, "issue not found", "failed to load issue")
	}
	err = s.write(ctx, actor, models.AuditActionDeleteIssue, models.AuditTargetIssue, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.requireEmpty(s.repo.CountPapersByIssue(ctx, issue.ID)); err != nil {
			return "", nil, err
		}
		if err := s.repo.DeleteIssue(ctx, issue.ID); err != nil {
			return "", nil, lookupError(err, "issue not found", "failed to delete issue")
		}
		return issue.ID, map[string]interface{}{"volume_id": issue.VolumeID, "issue_number": issue.IssueNumber}, nil
	})
	if err != nil {
		return appError(err, "failed to delete issue")
	}
	s.invalidate(ctx, volumeCacheKey(issue.VolumeID), issuePapersCacheKey(issue.ID))
	return nil
}

// CreateArchivedPaper records a historical paper. With an upload the file is stored at
// archive/{issueID}/{uuid}{ext} first and removed again if the insert fails; without one
// FileURL must point at an existing copy.
func (s *ArchiveService) CreateArchivedPaper(ctx context.Context, actorID string, req dto.ArchivedPaperRequest, upload *FileUpload) (*models.ArchivedPaper, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelPaper, "create")
	if err != nil {
		return nil, err
	}
	if err := s.validateArchivedPaper(req); err != nil {
		return nil, err
	}
	if upload == nil && strings.TrimSpace(req.FileURL) == "" {
		return nil, validationError("file or file_url is required")
	}
	if _, err := s.repo.GetIssue(ctx, req.IssueID); err != nil {
		return nil, lookupError(err, "issue not found", "failed to load issue")
	}

	paper := &models.ArchivedPaper{ID: uuid.NewString(), UploaderID: actor.ID, UploadedAt: time.Now().UTC()}
	applyArchivedPaper(paper, req)

	var objectPath string
	if upload != nil {
		if err := s.policy.check(upload); err != nil {
			return nil, err
		}
		objectPath = fmt.Sprintf("archive/%s/%s%s", paper.IssueID, uuid.NewString(), strings.ToLower(filepath.Ext(storage.SanitizeFilename(upload.Filename))))
		url, err := s.storage.Upload(ctx, upload.Content, objectPath, storage.UploadOptions{ContentType: upload.ContentType})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to store archived paper")
		}
		paper.FileURL = url
	}

	err = s.write(ctx, actor, models.AuditActionCreateArchivedPaper, models.AuditTargetArchivedPaper, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.repo.CreateArchivedPaper(ctx, paper); err != nil {
			return "", nil, err
		}
		return paper.ID, map[string]interface{}{"issue_id": paper.IssueID, "title": paper.Title}, nil
	})
	if err != nil {
		if objectPath != "" {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), objectPath); delErr != nil {
				s.logger.Error("failed to remove orphaned archive file", zap.String("path", objectPath), zap.Error(delErr))
			}
		}
		return nil, appError(err, "failed to create archived paper")
	}
	s.invalidate(ctx, issuePapersCacheKey(paper.IssueID))
	paper.Status = models.PaperStatusPublished
	return paper, nil
}

// UpdateArchivedPaper replaces the metadata of an archived paper. An empty FileURL keeps the stored file.
func (s *ArchiveService) UpdateArchivedPaper(ctx context.Context, actorID, id string, req dto.ArchivedPaperRequest) (*models.ArchivedPaper, error) {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelPaper, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validateArchivedPaper(req); err != nil {
		return nil, err
	}
	paper, err := s.repo.GetArchivedPaper(ctx, id)
	if err != nil {
		return nil, lookupError(err, "archived paper not found", "failed to load archived paper")
	}
	if req.IssueID != paper.IssueID {
		if _, err := s.repo.GetIssue(ctx, req.IssueID); err != nil {
			return nil, lookupError(err, "issue not found", "failed to load issue")
		}
	}
	previousIssue := paper.IssueID
	applyArchivedPaper(paper, req)
	err = s.write(ctx, actor, models.AuditActionUpdateArchivedPaper, models.AuditTargetArchivedPaper, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.repo.UpdateArchivedPaper(ctx, paper); err != nil {
			return "", nil, lookupError(err, "archived paper not found", "failed to update archived paper")
		}
		return paper.ID, map[string]interface{}{"issue_id": paper.IssueID, "title": paper.Title}, nil
	})
	if err != nil {
		return nil, appError(err, "failed to update archived paper")
	}
	s.invalidate(ctx, issuePapersCacheKey(previousIssue), issuePapersCacheKey(paper.IssueID))
	paper.Status = models.PaperStatusPublished
	return paper, nil
}

// DeleteArchivedPaper removes an archived paper and its stored file.
func (s *ArchiveService) DeleteArchivedPaper(ctx context.Context, actorID, id string) error {
	actor, err := s.authorize(ctx, actorID, models.ArchiveLevelPaper, "delete")
	if err != nil {
		return err
	}
	paper, err := s.repo.GetArchivedPaper(ctx, id)
	if err != nil {
		return lookupError(err, "archived paper not found", "failed to load archived paper")
	}
	err = s.write(ctx, actor, models.AuditActionDeleteArchivedPaper, models.AuditTargetArchivedPaper, func(ctx context.Context) (string, map[string]interface{}, error) {
		if err := s.repo.DeleteArchivedPaper(ctx, paper.ID); err != nil {
			return "", nil, lookupError(err, "archived paper not found", "failed to delete archived paper")
		}
		return paper.ID, map[string]interface{}{"issue_id": paper.IssueID, "title": paper.Title}, nil
	})
	if err != nil {
		return appError(err, "failed to delete archived paper")
	}
	s.invalidate(ctx, issuePapersCacheKey(paper.IssueID))
	if objectPath, ok := s.storage.ObjectPath(paper.FileURL); ok {
		if err := s.storage.Delete(ctx, objectPath); err != nil {
			s.logger.Warn("failed to remove archive file", zap.String("archived_paper_id", paper.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *ArchiveService) authorize(ctx context.Context, actorID string, level models.ArchiveLevel, verb string) (*models.User, error) {
	return s.authz.RequirePermission(ctx, actorID, rbac.ArchivePermission(level, verb))
}

// write runs fn and its audit row in one transaction.
func (s *ArchiveService) write(ctx context.Context, actor *models.User, action, targetType string, fn func(ctx context.Context) (string, map[string]interface{}, error)) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		targetID, metadata, err := fn(ctx)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     action,
			TargetID:   targetID,
			TargetType: targetType,
			Actor:      actor,
			Metadata:   metadata,
		})
	})
}

func (s *ArchiveService) invalidate(ctx context.Context, keys ...string) {
	_ = s.cache.Invalidate(ctx, keys...)
}

func (s *ArchiveService) requireEmpty(children int, err error) error {
	if err != nil {
		return err
	}
	if children > 0 {
		return appErrors.Clone(appErrors.ErrHasChildren, fmt.Sprintf("resource still has %d dependent records", children))
	}
	return nil
}

func (s *ArchiveService) requireFreeVolumeNumber(ctx context.Context, year, number int, excludeID string) error {
	taken, err := s.repo.VolumeNumberTaken(ctx, year, number, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("volume %d already exists for %d", number, year))
	}
	return nil
}

func (s *ArchiveService) checkIssueRefs(ctx context.Context, issue *models.Issue, excludeID string) error {
	if _, err := s.repo.GetVolume(ctx, issue.VolumeID); err != nil {
		return lookupError(err, "volume not found", "failed to load volume")
	}
	if issue.ConferenceID != nil {
		if _, err := s.repo.GetConference(ctx, *issue.ConferenceID); err != nil {
			return lookupError(err, "conference not found", "failed to load conference")
		}
	}
	taken, err := s.repo.IssueNumberTaken(ctx, issue.VolumeID, issue.IssueNumber, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("issue %d already exists in volume", issue.IssueNumber))
	}
	return nil
}

func (s *ArchiveService) validate(req interface{}, message string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

func (s *ArchiveService) validateConference(req dto.ConferenceRequest) error {
	if err := s.validate(req, "invalid conference payload"); err != nil {
		return err
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return validationError("end_date must not be before start_date")
	}
	return nil
}

func (s *ArchiveService) validateArchivedPaper(req dto.ArchivedPaperRequest) error {
	if err := s.validate(req, "invalid archived paper payload"); err != nil {
		return err
	}
	if req.PageStart != nil && req.PageEnd != nil && *req.PageEnd < *req.PageStart {
		return validationError("page_end must not be before page_start")
	}
	if req.DOI != nil && *req.DOI != "" && !models.IsValidDOI(strings.TrimSpace(*req.DOI)) {
		return validationError("doi is not a valid DOI")
	}
	return nil
}

func applyConference(conf *models.Conference, req dto.ConferenceRequest) {
	conf.Name = strings.TrimSpace(req.Name)
	conf.Acronym = strings.TrimSpace(req.Acronym)
	conf.Location = strings.TrimSpace(req.Location)
	conf.StartDate = req.StartDate
	conf.EndDate = req.EndDate
}

func applyIssue(issue *models.Issue, req dto.IssueRequest) {
	issue.VolumeID = req.VolumeID
	issue.ConferenceID = nil
	if req.ConferenceID != nil && strings.TrimSpace(*req.ConferenceID) != "" {
		id := strings.TrimSpace(*req.ConferenceID)
		issue.ConferenceID = &id
	}
	issue.IssueNumber = req.IssueNumber
	issue.Title = strings.TrimSpace(req.Title)
	issue.PublishedDate = req.PublishedDate
}

func applyArchivedPaper(paper *models.ArchivedPaper, req dto.ArchivedPaperRequest) {
	paper.IssueID = req.IssueID
	paper.Title = strings.TrimSpace(req.Title)
	paper.Abstract = strings.TrimSpace(req.Abstract)
	paper.Keywords = normalizeKeywords(req.Keywords)
	authors := make(models.StringArray, 0, len(req.Authors))
	for _, a := range req.Authors {
		authors = append(authors, strings.TrimSpace(a))
	}
	paper.Authors = authors
	paper.DOI = nil
	if req.DOI != nil && strings.TrimSpace(*req.DOI) != "" {
		doi := strings.TrimSpace(*req.DOI)
		paper.DOI = &doi
	}
	paper.PageStart = req.PageStart
	paper.PageEnd = req.PageEnd
	if url := strings.TrimSpace(req.FileURL); url != "" {
		paper.FileURL = url
	}
}
