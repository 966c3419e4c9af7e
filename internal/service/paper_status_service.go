package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type statusPaperStore interface {
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	ListAuthors(ctx context.Context, paperID string) ([]models.PaperAuthor, error)
	UpdateStatus(ctx context.Context, upd repository.StatusUpdate) (*models.Paper, error)
}

type publisher interface {
	Publish(ctx context.Context, paper *models.Paper, upd *repository.StatusUpdate) (bool, error)
}

type statusNotifier interface {
	NotifyStatusChange(ctx context.Context, n models.StatusChangeNotification) error
}

// PaperStatusService drives papers through the review lifecycle.
type PaperStatusService struct {
	papers    statusPaperStore
	authz     permissionChecker
	audit     auditRecorder
	tx        txRunner
	publisher publisher
	notifier  statusNotifier
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPaperStatusService constructs a PaperStatusService. notifier may be nil.
func NewPaperStatusService(papers statusPaperStore, authz permissionChecker, audit auditRecorder, tx txRunner, publisher publisher, notifier statusNotifier, metrics *MetricsService, logger *zap.Logger) *PaperStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperStatusService{
		papers:    papers,
		authz:     authz,
		audit:     audit,
		tx:        tx,
		publisher: publisher,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// requiredStatusPermission picks the permission by target status. Unknown targets need paper:update.
func requiredStatusPermission(to models.PaperStatus) rbac.Permission {
	switch to {
	case models.PaperStatusPublished:
		return rbac.PermPaperPublish
	case models.PaperStatusRejected:
		return rbac.PermPaperReview
	default:
		return rbac.PermPaperUpdate
	}
}

// UpdateStatus moves a paper to newStatus. The write only lands if the paper still holds the
// status and DOI it was read with; otherwise STALE_STATE is returned and nothing changes.
func (s *PaperStatusService) UpdateStatus(ctx context.Context, actorID, paperID string, newStatus models.PaperStatus) (*models.Paper, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, requiredStatusPermission(newStatus))
	if err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, validationError("unknown paper status " + string(newStatus))
	}
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, lookupError(err, "paper not found", "failed to load paper")
	}

	transition, err := models.ResolveTransition(paper.Status, newStatus, actor.Role)
	if err != nil {
		s.metrics.ObserveStatusTransition(paper.Status, newStatus, TransitionResultInvalid)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, err.Error())
	}

	var (
		updated *models.Paper
		minted  bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		upd := repository.StatusUpdate{
			ID:          paper.ID,
			From:        transition.From,
			To:          transition.To,
			ExpectedDOI: paper.DOI,
		}
		if transition.To == models.PaperStatusPublished {
			var err error
			if minted, err = s.publisher.Publish(ctx, paper, &upd); err != nil {
				return err
			}
		}
		var err error
		updated, err = s.papers.UpdateStatus(ctx, upd)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrStaleState
			}
			return err
		}
		var doi interface{}
		if updated.DOI != nil {
			doi = *updated.DOI
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionUpdatePaperStatus,
			TargetID:   paper.ID,
			TargetType: models.AuditTargetPaper,
			Actor:      actor,
			Metadata: map[string]interface{}{
				"from":     transition.From,
				"to":       transition.To,
				"doi":      doi,
				"override": transition.Override,
			},
		})
	})
	if err != nil {
		result := TransitionResultError
		if errors.Is(err, appErrors.ErrStaleState) {
			result = TransitionResultStale
		}
		s.metrics.ObserveStatusTransition(transition.From, transition.To, result)
		return nil, appError(err, "failed to update paper status")
	}

	result := TransitionResultOK
	if transition.Override {
		result = TransitionResultOverride
		s.logger.Warn("paper status override",
			zap.String("paper_id", paper.ID),
			zap.String("from", string(transition.From)),
			zap.String("to", string(transition.To)),
			zap.String("actor_id", actor.ID))
	}
	s.metrics.ObserveStatusTransition(transition.From, transition.To, result)
	if minted {
		s.metrics.IncDOIAssigned("publish")
	}

	if transition.To.Notifies() {
		s.notify(ctx, updated)
	}
	return updated, nil
}

// notify enqueues the status email after commit. Failures are logged only.
func (s *PaperStatusService) notify(ctx context.Context, paper *models.Paper) {
	if s.notifier == nil {
		return
	}
	authors, err := s.papers.ListAuthors(ctx, paper.ID)
	if err != nil {
		s.logger.Warn("failed to load authors for notification", zap.String("paper_id", paper.ID), zap.Error(err))
		return
	}
	author, ok := models.CorrespondingAuthor(authors)
	if !ok || author.Email == "" {
		s.logger.Warn("paper has no corresponding author to notify", zap.String("paper_id", paper.ID))
		return
	}
	n := models.StatusChangeNotification{
		To:           author.Email,
		AuthorName:   author.Name,
		PaperTitle:   paper.Title,
		SubmissionID: paper.ID,
		NewStatus:    paper.Status,
		NotifyAdmin:  paper.Status == models.PaperStatusPublished,
	}
	if paper.DOI != nil {
		n.DOI = *paper.DOI
	}
	if err := s.notifier.NotifyStatusChange(ctx, n); err != nil {
		s.logger.Warn("failed to enqueue status notification", zap.String("paper_id", paper.ID), zap.Error(err))
	}
}
