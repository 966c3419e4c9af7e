package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

var paperRowColumns = []string{"id", "title", "abstract", "keywords", "category_id", "status", "doi", "published_at", "raw_file_url", "submitted_by", "created_at", "updated_at"}

func paperRow(id string, status models.PaperStatus, doi interface{}) *sqlmock.Rows {
	now := time.Now()
	var published interface{}
	if doi != nil {
		published = now
	}
	return sqlmock.NewRows(paperRowColumns).
		AddRow(id, "Edge Caching", "Abstract", "{edge,cache}", "cat-1", string(status), doi, published, "", "author-1", now, now)
}

func TestPaperCreateInsertsAuthors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectExec("INSERT INTO papers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_authors").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO paper_authors").WillReturnResult(sqlmock.NewResult(0, 1))

	paper := &models.Paper{
		Title:       "Edge Caching",
		Keywords:    models.StringArray{"edge", "cache"},
		CategoryID:  "cat-1",
		SubmittedBy: "author-1",
		Authors: []models.PaperAuthor{
			{Name: "A", Email: "a@x.org", Position: 1, IsCorresponding: true},
			{Name: "B", Email: "b@x.org", Position: 2},
		},
	}
	require.NoError(t, repo.Create(context.Background(), paper))
	assert.NotEmpty(t, paper.ID)
	assert.Equal(t, models.PaperStatusSubmitted, paper.Status)
	assert.Equal(t, paper.ID, paper.Authors[1].PaperID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperFindByIDScansKeywords(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM papers WHERE id = $1")).
		WithArgs("p1").
		WillReturnRows(paperRow("p1", models.PaperStatusAccepted, nil))

	paper, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StringArray{"edge", "cache"}, paper.Keywords)
	assert.False(t, paper.HasDOI())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperUpdateStatusConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2 AND doi IS NOT DISTINCT FROM $4")).
		WithArgs("p1", models.PaperStatusSubmitted, models.PaperStatusUnderReview, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), StatusUpdate{
		ID:   "p1",
		From: models.PaperStatusSubmitted,
		To:   models.PaperStatusUnderReview,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperSetDOIOnlyWhenNull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	doi := "10.ISUFST.CICT/2025.00001"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE papers SET doi = $2, updated_at = $3 WHERE id = $1 AND doi IS NULL")).
		WithArgs("p1", doi, sqlmock.AnyArg()).
		WillReturnRows(paperRow("p1", models.PaperStatusAccepted, doi))

	paper, err := repo.SetDOI(context.Background(), "p1", doi)
	require.NoError(t, err)
	assert.Equal(t, doi, *paper.DOI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperSetDOIUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE papers SET doi = $2")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "papers_doi_key"})

	_, err := repo.SetDOI(context.Background(), "p1", "10.ISUFST.CICT/2025.00001")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperRevokeDOI(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	doi := "10.ISUFST.CICT/2025.00003"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE papers SET doi = NULL, published_at = NULL, status = $3")).
		WithArgs("p1", doi, models.PaperStatusRejected, sqlmock.AnyArg()).
		WillReturnRows(paperRow("p1", models.PaperStatusRejected, nil))

	paper, err := repo.RevokeDOI(context.Background(), "p1", doi)
	require.NoError(t, err)
	assert.Nil(t, paper.DOI)
	assert.Nil(t, paper.PublishedAt)
	assert.Equal(t, models.PaperStatusRejected, paper.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperListAuthorFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM papers WHERE submitted_by = $1 ORDER BY created_at DESC, id ASC LIMIT 20 OFFSET 0")).
		WithArgs("author-1").
		WillReturnRows(paperRow("p1", models.PaperStatusSubmitted, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM papers WHERE submitted_by = $1")).
		WithArgs("author-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	papers, total, err := repo.List(context.Background(), models.PaperFilter{SubmittedBy: "author-1"})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM papers WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperFindByIDMalformedIDIsNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery("FROM papers WHERE id = \\$1").
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})

	_, err := repo.FindByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
