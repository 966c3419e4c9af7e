package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

// AuditRepository appends audit rows. There is no update or delete path.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit row, on the transaction in ctx when there is one.
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.Metadata) == 0 {
		log.Metadata = []byte(`{}`)
	}
	const query = `INSERT INTO audit_logs
	(id, actor_id, actor_email, action, target_id, target_type, metadata, ip_address, user_agent, created_at)
	VALUES (:id, :actor_id, :actor_email, :action, :target_id, :target_type, :metadata, :ip_address, :user_agent, :created_at)`
	if _, err := database.QuerierFromCtx(ctx, r.db).NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	TargetType string
	TargetID   string
	ActorID    string
	Action     string
	Page       int
	PageSize   int
}

// List returns audit rows newest first with the total count.
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	eq := sq.Eq{}
	if filter.TargetType != "" {
		eq["target_type"] = filter.TargetType
	}
	if filter.TargetID != "" {
		eq["target_id"] = filter.TargetID
	}
	if filter.ActorID != "" {
		eq["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		eq["action"] = filter.Action
	}

	listBuilder := psql.Select("id, actor_id, actor_email, action, target_id, target_type, metadata, ip_address, user_agent, created_at").
		From("audit_logs")
	countBuilder := psql.Select("COUNT(*)").From("audit_logs")
	if len(eq) > 0 {
		listBuilder = listBuilder.Where(eq)
		countBuilder = countBuilder.Where(eq)
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	listQuery, args, err := listBuilder.OrderBy("created_at DESC").
		Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list audit logs: %w", err)
	}

	q := database.QuerierFromCtx(ctx, r.db)
	var logs []models.AuditLog
	if err := q.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count audit logs: %w", err)
	}
	var total int
	if err := q.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
