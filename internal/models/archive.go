package models

import "time"

// Conference groups issues presented at the same event.
type Conference struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Acronym   string     `db:"acronym" json:"acronym"`
	Location  string     `db:"location" json:"location"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Volume is a yearly container of issues.
type Volume struct {
	ID           string    `db:"id" json:"id"`
	VolumeNumber int       `db:"volume_number" json:"volume_number"`
	Year         int       `db:"year" json:"year"`
	Title        string    `db:"title" json:"title"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Issues []Issue `db:"-" json:"issues,omitempty"`
}

// Issue belongs to exactly one volume and optionally one conference.
type Issue struct {
	ID            string     `db:"id" json:"id"`
	VolumeID      string     `db:"volume_id" json:"volume_id"`
	ConferenceID  *string    `db:"conference_id" json:"conference_id,omitempty"`
	IssueNumber   int        `db:"issue_number" json:"issue_number"`
	Title         string     `db:"title" json:"title"`
	PublishedDate *time.Time `db:"published_date" json:"published_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ArchivedPaper is a historical published work stored apart from the live pipeline.
type ArchivedPaper struct {
	ID         string      `db:"id" json:"id"`
	IssueID    string      `db:"issue_id" json:"issue_id"`
	Title      string      `db:"title" json:"title"`
	Abstract   string      `db:"abstract" json:"abstract"`
	Keywords   StringArray `db:"keywords" json:"keywords"`
	Authors    StringArray `db:"authors" json:"authors"`
	DOI        *string     `db:"doi" json:"doi,omitempty"`
	PageStart  *int        `db:"page_start" json:"page_start,omitempty"`
	PageEnd    *int        `db:"page_end" json:"page_end,omitempty"`
	FileURL    string      `db:"file_url" json:"file_url"`
	UploaderID string      `db:"uploader_id" json:"uploader_id"`
	UploadedAt time.Time   `db:"uploaded_at" json:"uploaded_at"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`

	// Status is never stored; archived works always surface as PUBLISHED.
	Status PaperStatus `db:"-" json:"status"`
}

// WithPublishedStatus stamps the synthetic status on every paper.
func WithPublishedStatus(papers []ArchivedPaper) []ArchivedPaper {
	for i := range papers {
		papers[i].Status = PaperStatusPublished
	}
	return papers
}

// ArchiveLevel names a level of the archive hierarchy, used for permissions, audit and cache keys.
type ArchiveLevel string

const (
	ArchiveLevelConference ArchiveLevel = "conference"
	ArchiveLevelVolume     ArchiveLevel = "volume"
	ArchiveLevelIssue      ArchiveLevel = "issue"
	ArchiveLevelPaper      ArchiveLevel = "paper"
)
