package dto

// PaperAuthorInput is one author of a new submission, in byline order.
type PaperAuthorInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email"`
	Affiliation     string `json:"affiliation" validate:"max=300"`
	IsCorresponding bool   `json:"is_corresponding"`
}

// CreatePaperRequest carries the metadata submitted with a manuscript upload.
type CreatePaperRequest struct {
	Title      string             `json:"title" validate:"required,max=500"`
	Abstract   string             `json:"abstract" validate:"required"`
	Keywords   []string           `json:"keywords" validate:"required,min=1,dive,required"`
	CategoryID string             `json:"category_id" validate:"required"`
	Authors    []PaperAuthorInput `json:"authors" validate:"required,min=1,dive"`
}

// UpdatePaperStatusRequest requests a lifecycle transition.
type UpdatePaperStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReasonRequest is the body of destructive DEAN operations.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}
