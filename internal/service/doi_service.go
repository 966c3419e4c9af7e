package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type doiSequence interface {
	Next(ctx context.Context, year int) (int, error)
}

type doiPaperStore interface {
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	SetDOI(ctx context.Context, id, doi string) (*models.Paper, error)
	RevokeDOI(ctx context.Context, id, doi string) (*models.Paper, error)
}

var errDOIRace = errors.New("doi assigned concurrently")

// DOIService mints, assigns and revokes paper DOIs.
type DOIService struct {
	papers  doiPaperStore
	seq     doiSequence
	authz   permissionChecker
	audit   auditRecorder
	tx      txRunner
	metrics *MetricsService
	logger  *zap.Logger
	prefix  string
	now     func() time.Time
}

// DOIServiceOption customises the DOI service.
type DOIServiceOption func(*DOIService)

// WithDOIPrefix overrides the registrant prefix.
func WithDOIPrefix(prefix string) DOIServiceOption {
	return func(s *DOIService) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithDOIClock overrides the clock used to pick the DOI year.
func WithDOIClock(now func() time.Time) DOIServiceOption {
	return func(s *DOIService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDOIService constructs a DOIService.
func NewDOIService(papers doiPaperStore, seq doiSequence, authz permissionChecker, audit auditRecorder, tx txRunner, metrics *MetricsService, logger *zap.Logger, opts ...DOIServiceOption) *DOIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DOIService{
		papers:  papers,
		seq:     seq,
		authz:   authz,
		audit:   audit,
		tx:      tx,
		metrics: metrics,
		logger:  logger,
		prefix:  models.DefaultDOIPrefix,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Mint draws the next serial for the current UTC year and formats the DOI.
// The increment joins the transaction in ctx, so it rolls back with the caller.
func (s *DOIService) Mint(ctx context.Context) (string, error) {
	year := s.now().UTC().Year()
	serial, err := s.seq.Next(ctx, year)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to draw doi serial")
	}
	doi, err := models.FormatDOI(s.prefix, year, serial)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "doi serial space exhausted")
	}
	return doi, nil
}

// AssignDOI gives an accepted or published paper its DOI. When the paper already has one the
// result carries it together with a DOI_ALREADY_ASSIGNED error.
func (s *DOIService) AssignDOI(ctx context.Context, actorID, paperID string) (*models.DOIResult, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermDOIAssign)
	if err != nil {
		return nil, err
	}
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, lookupError(err, "paper not found", "failed to load paper")
	}
	if paper.HasDOI() {
		return &models.DOIResult{Paper: paper, DOI: *paper.DOI}, appErrors.ErrDOIAlreadyAssigned
	}
	if paper.Status != models.PaperStatusAccepted && paper.Status != models.PaperStatusPublished {
		return nil, validationError("doi can only be assigned to accepted or published papers")
	}

	var result models.DOIResult
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doi, err := s.Mint(ctx)
		if err != nil {
			return err
		}
		updated, err := s.papers.SetDOI(ctx, paper.ID, doi)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errDOIRace
			}
			return err
		}
		if err := s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionAssignDOI,
			TargetID:   paper.ID,
			TargetType: models.AuditTargetPaper,
			Actor:      actor,
			Metadata:   map[string]interface{}{"doi": doi, "status": paper.Status},
		}); err != nil {
			return err
		}
		result = models.DOIResult{Paper: updated, DOI: doi}
		return nil
	})
	if errors.Is(err, errDOIRace) {
		current, findErr := s.papers.FindByID(ctx, paper.ID)
		if findErr != nil || !current.HasDOI() {
			return nil, appErrors.ErrDOIAlreadyAssigned
		}
		return &models.DOIResult{Paper: current, DOI: *current.DOI}, appErrors.ErrDOIAlreadyAssigned
	}
	if err != nil {
		return nil, appError(err, "failed to assign doi")
	}

	s.metrics.IncDOIAssigned("assign")
	s.logger.Info("doi assigned", zap.String("paper_id", paper.ID), zap.String("doi", result.DOI), zap.String("actor_id", actor.ID))
	return &result, nil
}

// RevokeDOI removes a paper's DOI and reverts it to REJECTED. The sequence counter is left untouched.
func (s *DOIService) RevokeDOI(ctx context.Context, actorID, paperID, reason string) (*models.DOIResult, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermDOIRevoke)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, lookupError(err, "paper not found", "failed to load paper")
	}
	if !paper.HasDOI() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "paper has no doi")
	}
	revoked := *paper.DOI

	var updated *models.Paper
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.papers.RevokeDOI(ctx, paper.ID, revoked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrStaleState
			}
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionRevokeDOI,
			TargetID:   paper.ID,
			TargetType: models.AuditTargetPaper,
			Actor:      actor,
			Metadata: map[string]interface{}{
				"revoked_doi": revoked,
				"reason":      reason,
				"from":        paper.Status,
			},
		})
	})
	if err != nil {
		return nil, appError(err, "failed to revoke doi")
	}

	s.logger.Info("doi revoked", zap.String("paper_id", paper.ID), zap.String("doi", revoked), zap.String("actor_id", actor.ID))
	return &models.DOIResult{Paper: updated, RevokedDOI: revoked}, nil
}
