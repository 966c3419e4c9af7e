package models

// StatusChangeNotification is the email sent to a paper's corresponding author when its status changes.
type StatusChangeNotification struct {
	To           string      `json:"to"`
	AuthorName   string      `json:"author_name"`
	PaperTitle   string      `json:"paper_title"`
	SubmissionID string      `json:"submission_id"`
	NewStatus    PaperStatus `json:"new_status"`
	DOI          string      `json:"doi,omitempty"`
	NotifyAdmin  bool        `json:"notify_admin"`
}
