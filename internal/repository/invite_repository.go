package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

const inviteColumns = "id, email, role, token_hash, status, invited_by, expires_at, accepted_at, created_at"

// InvitePendingEmailConstraint is the partial unique index guarding one pending invite per email.
const InvitePendingEmailConstraint = "invite_tokens_pending_email_key"

// InviteRepository persists invite tokens.
type InviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository constructs the repository.
func NewInviteRepository(db *sqlx.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create inserts an invite. The caller sets ID so it can be embedded in the token.
func (r *InviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}
	if invite.Status == "" {
		invite.Status = models.InviteStatusPending
	}
	const query = `INSERT INTO invite_tokens (id, email, role, token_hash, status, invited_by, expires_at, accepted_at, created_at)
	VALUES (:id, :email, :role, :token_hash, :status, :invited_by, :expires_at, :accepted_at, :created_at)`
	if _, err := database.QuerierFromCtx(ctx, r.db).NamedExecContext(ctx, query, invite); err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

// FindByID fetches an invite.
func (r *InviteRepository) FindByID(ctx context.Context, id string) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_tokens WHERE id = $1`
	var invite models.Invite
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &invite, query, id); err != nil {
		if err = MapPQError(err); errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find invite: %w", err)
	}
	return &invite, nil
}

// FindPendingByEmail returns the pending invite for email, if any.
func (r *InviteRepository) FindPendingByEmail(ctx context.Context, email string) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_tokens WHERE lower(email) = lower($1) AND status = 'PENDING' LIMIT 1`
	var invite models.Invite
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &invite, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find pending invite: %w", err)
	}
	return &invite, nil
}

// MarkAccepted flips a pending invite to ACCEPTED. sql.ErrNoRows means it was no longer pending.
func (r *InviteRepository) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE invite_tokens SET status = 'ACCEPTED', accepted_at = $2 WHERE id = $1 AND status = 'PENDING'`
	res, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return requireRows(res, "accept invite")
}

// MarkExpired flips a single pending invite to EXPIRED.
func (r *InviteRepository) MarkExpired(ctx context.Context, id string) error {
	const query = `UPDATE invite_tokens SET status = 'EXPIRED' WHERE id = $1 AND status = 'PENDING'`
	if _, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("expire invite: %w", err)
	}
	return nil
}

// ExpireBefore flips every pending invite with expires_at <= now and returns how many changed.
func (r *InviteRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE invite_tokens SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= $1`
	res, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check expired invite rows: %w", err)
	}
	return rows, nil
}
