package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/export"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/middleware/requestmeta"
)

// SystemActorID is recorded for audit rows written by scheduled jobs.
const SystemActorID = "system"

// MaxAuditExportRows bounds a single CSV export.
const MaxAuditExportRows = 5000

var auditExportHeaders = []string{"created_at", "actor_id", "actor_email", "action", "target_type", "target_id", "metadata", "ip_address", "user_agent"}

type auditStore interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, int, error)
}

// auditRecorder writes audit rows for mutations.
type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry) error
	RecordBestEffort(ctx context.Context, entry models.AuditEntry)
}

// txRunner executes fn inside one database transaction carried by ctx.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditService appends audit rows and serves the audit trail to editors.
type AuditService struct {
	repo   auditStore
	authz  permissionChecker
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditStore, authz permissionChecker, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, authz: authz, logger: logger}
}

// Record writes one audit row. Inside RunInTx the row shares the mutation's transaction,
// so a failure here rolls the mutation back.
func (s *AuditService) Record(ctx context.Context, entry models.AuditEntry) error {
	log, err := buildAuditLog(ctx, entry)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, log); err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}
	return nil
}

// RecordBestEffort writes an audit row and only logs failures.
func (s *AuditService) RecordBestEffort(ctx context.Context, entry models.AuditEntry) {
	if err := s.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("target_id", entry.TargetID),
			zap.Error(err))
	}
}

// List returns audit rows for actors holding audit:read.
func (s *AuditService) List(ctx context.Context, actorID string, filter repository.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if _, err := s.authz.RequirePermission(ctx, actorID, rbac.PermAuditRead); err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Export renders the filtered audit trail, newest first, as CSV. Page fields of filter are ignored.
func (s *AuditService) Export(ctx context.Context, actorID string, filter repository.AuditFilter) ([]byte, error) {
	if _, err := s.authz.RequirePermission(ctx, actorID, rbac.PermAuditRead); err != nil {
		return nil, err
	}
	table := export.Table{Headers: auditExportHeaders}
	filter.PageSize = 100
	for filter.Page = 1; len(table.Rows) < MaxAuditExportRows; filter.Page++ {
		logs, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
		}
		for _, l := range logs {
			table.Rows = append(table.Rows, []string{
				l.CreatedAt.UTC().Format(time.RFC3339),
				l.ActorID,
				l.ActorEmail,
				l.Action,
				l.TargetType,
				l.TargetID,
				string(l.Metadata),
				l.IPAddress,
				l.UserAgent,
			})
		}
		if len(logs) < filter.PageSize || filter.Page*filter.PageSize >= total {
			break
		}
	}
	if len(table.Rows) > MaxAuditExportRows {
		table.Rows = table.Rows[:MaxAuditExportRows]
	}
	out, err := export.CSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return out, nil
}

func buildAuditLog(ctx context.Context, entry models.AuditEntry) (*models.AuditLog, error) {
	metadata := []byte(`{}`)
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = raw
	}
	meta := requestmeta.FromContext(ctx)
	log := &models.AuditLog{
		ActorID:    SystemActorID,
		Action:     entry.Action,
		TargetID:   entry.TargetID,
		TargetType: entry.TargetType,
		Metadata:   metadata,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if entry.Actor != nil {
		log.ActorID = entry.Actor.ID
		log.ActorEmail = entry.Actor.Email
	}
	return log, nil
}
