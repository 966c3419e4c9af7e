package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

const (
	conferenceColumns    = "id, name, acronym, location, start_date, end_date, created_at, updated_at"
	volumeColumns        = "id, volume_number, year, title, created_at, updated_at"
	issueColumns         = "id, volume_id, conference_id, issue_number, title, published_date, created_at, updated_at"
	archivedPaperColumns = "id, issue_id, title, abstract, keywords, authors, doi, page_start, page_end, file_url, uploader_id, uploaded_at, created_at, updated_at"
)

// ArchiveRepository persists the Conference, Volume, Issue and ArchivedPaper hierarchy.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func stamp(id *string, createdAt, updatedAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func (r *ArchiveRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, dest, query, args...); err != nil {
		if err = MapPQError(err); errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("archive get: %w", err)
	}
	return nil
}

func (r *ArchiveRepository) namedExec(ctx context.Context, op, query string, arg interface{}) error {
	res, err := database.QuerierFromCtx(ctx, r.db).NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, MapPQError(err))
	}
	return requireRows(res, op)
}

func (r *ArchiveRepository) deleteByID(ctx context.Context, table, id string) error {
	res, err := database.QuerierFromCtx(ctx, r.db).ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, MapPQError(err))
	}
	return requireRows(res, "delete "+table)
}

func (r *ArchiveRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var total int
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("archive count: %w", err)
	}
	return total, nil
}

// ListConferences returns conferences, most recent first.
func (r *ArchiveRepository) ListConferences(ctx context.Context) ([]models.Conference, error) {
	query := `SELECT ` + conferenceColumns + ` FROM conferences ORDER BY start_date DESC NULLS LAST, name ASC`
	var rows []models.Conference
	if err := database.QuerierFromCtx(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list conferences: %w", err)
	}
	return rows, nil
}

// GetConference fetches one conference.
func (r *ArchiveRepository) GetConference(ctx context.Context, id string) (*models.Conference, error) {
	var conf models.Conference
	if err := r.get(ctx, &conf, `SELECT `+conferenceColumns+` FROM conferences WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &conf, nil
}

// CreateConference inserts a conference.
func (r *ArchiveRepository) CreateConference(ctx context.Context, conf *models.Conference) error {
	stamp(&conf.ID, &conf.CreatedAt, &conf.UpdatedAt)
	const query = `INSERT INTO conferences (id, name, acronym, location, start_date, end_date, created_at, updated_at)
	VALUES (:id, :name, :acronym, :location, :start_date, :end_date, :created_at, :updated_at)`
	return r.namedExec(ctx, "create conference", query, conf)
}

// UpdateConference overwrites mutable conference fields.
func (r *ArchiveRepository) UpdateConference(ctx context.Context, conf *models.Conference) error {
	conf.UpdatedAt = time.Now().UTC()
	const query = `UPDATE conferences SET name = :name, acronym = :acronym, location = :location,
	start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	return r.namedExec(ctx, "update conference", query, conf)
}

// DeleteConference removes a conference.
func (r *ArchiveRepository) DeleteConference(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "conferences", id)
}

// CountIssuesByConference counts issues referencing the conference.
func (r *ArchiveRepository) CountIssuesByConference(ctx context.Context, conferenceID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM issues WHERE conference_id = $1`, conferenceID)
}

// ListVolumes returns volumes ordered newest first.
func (r *ArchiveRepository) ListVolumes(ctx context.Context) ([]models.Volume, error) {
	query := `SELECT ` + volumeColumns + ` FROM volumes ORDER BY year DESC, volume_number DESC`
	var rows []models.Volume
	if err := database.QuerierFromCtx(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	return rows, nil
}

// GetVolume fetches one volume without issues.
func (r *ArchiveRepository) GetVolume(ctx context.Context, id string) (*models.Volume, error) {
	var vol models.Volume
	if err := r.get(ctx, &vol, `SELECT `+volumeColumns+` FROM volumes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &vol, nil
}

// VolumeNumberTaken reports whether another volume already uses number in year.
func (r *ArchiveRepository) VolumeNumberTaken(ctx context.Context, year, number int, excludeID string) (bool, error) {
	total, err := r.count(ctx, `SELECT COUNT(*) FROM volumes WHERE year = $1 AND volume_number = $2 AND id::text <> $3`, year, number, excludeID)
	return total > 0, err
}

// CreateVolume inserts a volume.
func (r *ArchiveRepository) CreateVolume(ctx context.Context, vol *models.Volume) error {
	stamp(&vol.ID, &vol.CreatedAt, &vol.UpdatedAt)
	const query = `INSERT INTO volumes (id, volume_number, year, title, created_at, updated_at)
	VALUES (:id, :volume_number, :year, :title, :created_at, :updated_at)`
	return r.namedExec(ctx, "create volume", query, vol)
}

// UpdateVolume overwrites mutable volume fields.
func (r *ArchiveRepository) UpdateVolume(ctx context.Context, vol *models.Volume) error {
	vol.UpdatedAt = time.Now().UTC()
	const query = `UPDATE volumes SET volume_number = :volume_number, year = :year, title = :title, updated_at = :updated_at WHERE id = :id`
	return r.namedExec(ctx, "update volume", query, vol)
}

// DeleteVolume removes a volume.
func (r *ArchiveRepository) DeleteVolume(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "volumes", id)
}

// CountIssuesByVolume counts the issues inside a volume.
func (r *ArchiveRepository) CountIssuesByVolume(ctx context.Context, volumeID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM issues WHERE volume_id = $1`, volumeID)
}

// ListIssuesByVolume returns the issues of a volume by issue number.
func (r *ArchiveRepository) ListIssuesByVolume(ctx context.Context, volumeID string) ([]models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE volume_id = $1 ORDER BY issue_number ASC`
	var rows []models.Issue
	if err := database.QuerierFromCtx(ctx, r.db).SelectContext(ctx, &rows, query, volumeID); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return rows, nil
}

// GetIssue fetches one issue.
func (r *ArchiveRepository) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	if err := r.get(ctx, &issue, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &issue, nil
}

// IssueNumberTaken reports whether another issue of the volume already uses number.
func (r *ArchiveRepository) IssueNumberTaken(ctx context.Context, volumeID string, number int, excludeID string) (bool, error) {
	total, err := r.count(ctx, `SELECT COUNT(*) FROM issues WHERE volume_id = $1 AND issue_number = $2 AND id::text <> $3`, volumeID, number, excludeID)
	return total > 0, err
}

// CreateIssue inserts an issue.
func (r *ArchiveRepository) CreateIssue(ctx context.Context, issue *models.Issue) error {
	stamp(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	const query = `INSERT INTO issues (id, volume_id, conference_id, issue_number, title, published_date, created_at, updated_at)
	VALUES (:id, :volume_id, :conference_id, :issue_number, :title, :published_date, :created_at, :updated_at)`
	return r.namedExec(ctx, "create issue", query, issue)
}

// UpdateIssue overwrites mutable issue fields.
func (r *ArchiveRepository) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	const query = `UPDATE issues SET volume_id = :volume_id, conference_id = :conference_id, issue_number = :issue_number,
	title = :title, published_date = :published_date, updated_at = :updated_at WHERE id = :id`
	return r.namedExec(ctx, "update issue", query, issue)
}

// DeleteIssue removes an issue.
func (r *ArchiveRepository) DeleteIssue(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "issues", id)
}

// CountPapersByIssue counts archived papers in an issue.
func (r *ArchiveRepository) CountPapersByIssue(ctx context.Context, issueID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM archived_papers WHERE issue_id = $1`, issueID)
}

// ListPapersByIssue returns papers by first page, unnumbered papers last, then creation order.
func (r *ArchiveRepository) ListPapersByIssue(ctx context.Context, issueID string) ([]models.ArchivedPaper, error) {
	query := `SELECT ` + archivedPaperColumns + ` FROM archived_papers WHERE issue_id = $1
	ORDER BY page_start ASC NULLS LAST, created_at ASC, id ASC`
	var rows []models.ArchivedPaper
	if err := database.QuerierFromCtx(ctx, r.db).SelectContext(ctx, &rows, query, issueID); err != nil {
		return nil, fmt.Errorf("list archived papers: %w", err)
	}
	return rows, nil
}

// GetArchivedPaper fetches one archived paper.
func (r *ArchiveRepository) GetArchivedPaper(ctx context.Context, id string) (*models.ArchivedPaper, error) {
	var paper models.ArchivedPaper
	if err := r.get(ctx, &paper, `SELECT `+archivedPaperColumns+` FROM archived_papers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &paper, nil
}

// CreateArchivedPaper inserts an archived paper.
func (r *ArchiveRepository) CreateArchivedPaper(ctx context.Context, paper *models.ArchivedPaper) error {
	stamp(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)
	if paper.UploadedAt.IsZero() {
		paper.UploadedAt = paper.CreatedAt
	}
	const query = `INSERT INTO archived_papers
	(id, issue_id, title, abstract, keywords, authors, doi, page_start, page_end, file_url, uploader_id, uploaded_at, created_at, updated_at)
	VALUES (:id, :issue_id, :title, :abstract, :keywords, :authors, :doi, :page_start, :page_end, :file_url, :uploader_id, :uploaded_at, :created_at, :updated_at)`
	return r.namedExec(ctx, "create archived paper", query, paper)
}

// UpdateArchivedPaper overwrites mutable archived paper fields.
func (r *ArchiveRepository) UpdateArchivedPaper(ctx context.Context, paper *models.ArchivedPaper) error {
	paper.UpdatedAt = time.Now().UTC()
	const query = `UPDATE archived_papers SET issue_id = :issue_id, title = :title, abstract = :abstract, keywords = :keywords,
	authors = :authors, doi = :doi, page_start = :page_start, page_end = :page_end, file_url = :file_url, updated_at = :updated_at
	WHERE id = :id`
	return r.namedExec(ctx, "update archived paper", query, paper)
}

// DeleteArchivedPaper removes an archived paper.
func (r *ArchiveRepository) DeleteArchivedPaper(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "archived_papers", id)
}
