package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

const paperColumns = "id, title, abstract, keywords, category_id, status, doi, published_at, raw_file_url, submitted_by, created_at, updated_at"

const authorColumns = "id, paper_id, user_id, name, email, affiliation, position, is_corresponding"

// PaperRepository persists live submissions and their authors.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository constructs the repository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// Create inserts a paper and its ordered authors.
func (r *PaperRepository) Create(ctx context.Context, paper *models.Paper) error {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	if paper.Status == "" {
		paper.Status = models.PaperStatusSubmitted
	}
	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now

	q := database.QuerierFromCtx(ctx, r.db)
	const query = `INSERT INTO papers
	(id, title, abstract, keywords, category_id, status, doi, published_at, raw_file_url, submitted_by, created_at, updated_at)
	VALUES (:id, :title, :abstract, :keywords, :category_id, :status, :doi, :published_at, :raw_file_url, :submitted_by, :created_at, :updated_at)`
	if _, err := q.NamedExecContext(ctx, query, paper); err != nil {
		return fmt.Errorf("create paper: %w", MapPQError(err))
	}

	const authorQuery = `INSERT INTO paper_authors
	(id, paper_id, user_id, name, email, affiliation, position, is_corresponding)
	VALUES (:id, :paper_id, :user_id, :name, :email, :affiliation, :position, :is_corresponding)`
	for i := range paper.Authors {
		author := &paper.Authors[i]
		if author.ID == "" {
			author.ID = uuid.NewString()
		}
		author.PaperID = paper.ID
		if _, err := q.NamedExecContext(ctx, authorQuery, author); err != nil {
			return fmt.Errorf("create paper author: %w", MapPQError(err))
		}
	}
	return nil
}

// FindByID returns a paper without authors.
func (r *PaperRepository) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = $1`
	var paper models.Paper
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &paper, query, id); err != nil {
		if err = MapPQError(err); errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find paper: %w", err)
	}
	return &paper, nil
}

// ListAuthors returns the authors of a paper ordered by position.
func (r *PaperRepository) ListAuthors(ctx context.Context, paperID string) ([]models.PaperAuthor, error) {
	query := `SELECT ` + authorColumns + ` FROM paper_authors WHERE paper_id = $1 ORDER BY position ASC`
	var authors []models.PaperAuthor
	if err := database.QuerierFromCtx(ctx, r.db).SelectContext(ctx, &authors, query, paperID); err != nil {
		return nil, fmt.Errorf("list paper authors: %w", err)
	}
	return authors, nil
}

// List returns papers matching filter, newest first, with the total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	listBuilder := applyPaperFilter(psql.Select(paperColumns).From("papers"), filter)
	countBuilder := applyPaperFilter(psql.Select("COUNT(*)").From("papers"), filter)

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	listQuery, args, err := listBuilder.
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list papers: %w", err)
	}

	q := database.QuerierFromCtx(ctx, r.db)
	var papers []models.Paper
	if err := q.SelectContext(ctx, &papers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count papers: %w", err)
	}
	var total int
	if err := q.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}
	return papers, total, nil
}

func applyPaperFilter(b sq.SelectBuilder, filter models.PaperFilter) sq.SelectBuilder {
	if filter.Status != nil {
		b = b.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.CategoryID != "" {
		b = b.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	if filter.SubmittedBy != "" {
		b = b.Where(sq.Eq{"submitted_by": filter.SubmittedBy})
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		b = b.Where(sq.Or{sq.Like{"lower(title)": pattern}, sq.Like{"lower(abstract)": pattern}})
	}
	return b
}

// StatusUpdate is a conditional status write. The row must still hold From and ExpectedDOI.
type StatusUpdate struct {
	ID          string
	From        models.PaperStatus
	To          models.PaperStatus
	ExpectedDOI *string
	DOI         *string
	PublishedAt *time.Time
}

// UpdateStatus applies a StatusUpdate and returns the updated row.
// sql.ErrNoRows means the paper changed since it was read.
func (r *PaperRepository) UpdateStatus(ctx context.Context, upd StatusUpdate) (*models.Paper, error) {
	query := `UPDATE papers
	SET status = $3,
	    doi = COALESCE($5, doi),
	    published_at = COALESCE($6, published_at),
	    updated_at = $7
	WHERE id = $1 AND status = $2 AND doi IS NOT DISTINCT FROM $4
	RETURNING ` + paperColumns
	var paper models.Paper
	err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &paper, query,
		upd.ID, upd.From, upd.To, upd.ExpectedDOI, upd.DOI, upd.PublishedAt, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update paper status: %w", MapPQError(err))
	}
	return &paper, nil
}

// SetDOI stores doi on a paper that has none. sql.ErrNoRows means a DOI is already present.
func (r *PaperRepository) SetDOI(ctx context.Context, id, doi string) (*models.Paper, error) {
	query := `UPDATE papers SET doi = $2, updated_at = $3 WHERE id = $1 AND doi IS NULL RETURNING ` + paperColumns
	var paper models.Paper
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &paper, query, id, doi, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("set paper doi: %w", MapPQError(err))
	}
	return &paper, nil
}

// RevokeDOI clears doi and published_at and reverts the paper to REJECTED, if it still holds doi.
func (r *PaperRepository) RevokeDOI(ctx context.Context, id, doi string) (*models.Paper, error) {
	query := `UPDATE papers SET doi = NULL, published_at = NULL, status = $3, updated_at = $4
	WHERE id = $1 AND doi = $2 RETURNING ` + paperColumns
	var paper models.Paper
	err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &paper, query, id, doi, models.PaperStatusRejected, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("revoke paper doi: %w", err)
	}
	return &paper, nil
}

// SetRawFileURL records where the manuscript was stored.
func (r *PaperRepository) SetRawFileURL(ctx context.Context, id, url string) error {
	const query = `UPDATE papers SET raw_file_url = $2, updated_at = $3 WHERE id = $1`
	res, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, id, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set paper file url: %w", err)
	}
	return requireRows(res, "paper file url")
}

// Delete removes a paper; authors, comments and assignments cascade.
func (r *PaperRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM papers WHERE id = $1`
	res, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete paper: %w", MapPQError(err))
	}
	return requireRows(res, "paper delete")
}

func requireRows(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
