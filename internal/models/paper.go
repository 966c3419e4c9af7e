package models

import "time"

// Paper is a live submission moving through review.
type Paper struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Abstract    string      `db:"abstract" json:"abstract"`
	Keywords    StringArray `db:"keywords" json:"keywords"`
	CategoryID  string      `db:"category_id" json:"category_id"`
	Status      PaperStatus `db:"status" json:"status"`
	DOI         *string     `db:"doi" json:"doi,omitempty"`
	PublishedAt *time.Time  `db:"published_at" json:"published_at,omitempty"`
	RawFileURL  string      `db:"raw_file_url" json:"raw_file_url"`
	SubmittedBy string      `db:"submitted_by" json:"submitted_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`

	Authors []PaperAuthor `db:"-" json:"authors,omitempty"`
}

// HasDOI reports whether a DOI has been assigned.
func (p *Paper) HasDOI() bool {
	return p.DOI != nil && *p.DOI != ""
}

// PaperAuthor is an ordered author row of a paper.
type PaperAuthor struct {
	ID              string  `db:"id" json:"id"`
	PaperID         string  `db:"paper_id" json:"paper_id"`
	UserID          *string `db:"user_id" json:"user_id,omitempty"`
	Name            string  `db:"name" json:"name"`
	Email           string  `db:"email" json:"email"`
	Affiliation     string  `db:"affiliation" json:"affiliation"`
	Position        int     `db:"position" json:"position"`
	IsCorresponding bool    `db:"is_corresponding" json:"is_corresponding"`
}

// CorrespondingAuthor returns the flagged author, falling back to the lowest position.
func CorrespondingAuthor(authors []PaperAuthor) (PaperAuthor, bool) {
	if len(authors) == 0 {
		return PaperAuthor{}, false
	}
	first := authors[0]
	for _, a := range authors {
		if a.IsCorresponding {
			return a, true
		}
		if a.Position < first.Position {
			first = a
		}
	}
	return first, true
}

// PaperFilter narrows paper listings.
type PaperFilter struct {
	Status      *PaperStatus
	CategoryID  string
	SubmittedBy string
	Search      string
	Page        int
	PageSize    int
}
