package dto

import "time"

// ConferenceRequest creates or replaces a conference.
type ConferenceRequest struct {
	Name      string     `json:"name" validate:"required,max=300"`
	Acronym   string     `json:"acronym" validate:"max=50"`
	Location  string     `json:"location" validate:"max=300"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// VolumeRequest creates or replaces a volume.
type VolumeRequest struct {
	VolumeNumber int    `json:"volume_number" validate:"required,gt=0"`
	Year         int    `json:"year" validate:"required,gte=1900,lte=2100"`
	Title        string `json:"title" validate:"max=300"`
}

// IssueRequest creates or replaces an issue.
type IssueRequest struct {
	VolumeID      string     `json:"volume_id" validate:"required"`
	ConferenceID  *string    `json:"conference_id"`
	IssueNumber   int        `json:"issue_number" validate:"required,gt=0"`
	Title         string     `json:"title" validate:"max=300"`
	PublishedDate *time.Time `json:"published_date"`
}

// ArchivedPaperRequest carries metadata of a historical paper. On upload it is bound from form fields.
type ArchivedPaperRequest struct {
	IssueID   string   `json:"issue_id" form:"issue_id" validate:"required"`
	Title     string   `json:"title" form:"title" validate:"required,max=500"`
	Abstract  string   `json:"abstract" form:"abstract"`
	Keywords  []string `json:"keywords" form:"keywords"`
	Authors   []string `json:"authors" form:"authors" validate:"dive,required"`
	DOI       *string  `json:"doi" form:"doi"`
	PageStart *int     `json:"page_start" form:"page_start" validate:"omitempty,gt=0"`
	PageEnd   *int     `json:"page_end" form:"page_end" validate:"omitempty,gt=0"`
	FileURL   string   `json:"file_url" form:"file_url" validate:"omitempty,url"`
}
