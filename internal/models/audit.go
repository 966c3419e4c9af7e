package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionUpdatePaperStatus = "UPDATE_PAPER_STATUS"
	AuditActionAssignDOI         = "ASSIGN_DOI"
	AuditActionRevokeDOI         = "REVOKE_DOI"
	AuditActionCreatePaper       = "CREATE_PAPER"
	AuditActionDeletePaper       = "DELETE_PAPER"
	AuditActionUpdateUserRole    = "UPDATE_USER_ROLE"
	AuditActionToggleUserActive  = "TOGGLE_USER_ACTIVE"
	AuditActionCreateInvite      = "CREATE_INVITE"
	AuditActionAcceptInvite      = "ACCEPT_INVITE"
	AuditActionExpireInvites     = "EXPIRE_INVITES"

	AuditActionCreateConference    = "CREATE_CONFERENCE"
	AuditActionUpdateConference    = "UPDATE_CONFERENCE"
	AuditActionDeleteConference    = "DELETE_CONFERENCE"
	AuditActionCreateVolume        = "CREATE_VOLUME"
	AuditActionUpdateVolume        = "UPDATE_VOLUME"
	AuditActionDeleteVolume        = "DELETE_VOLUME"
	AuditActionCreateIssue         = "CREATE_ISSUE"
	AuditActionUpdateIssue         = "UPDATE_ISSUE"
	AuditActionDeleteIssue         = "DELETE_ISSUE"
	AuditActionCreateArchivedPaper = "CREATE_ARCHIVED_PAPER"
	AuditActionUpdateArchivedPaper = "UPDATE_ARCHIVED_PAPER"
	AuditActionDeleteArchivedPaper = "DELETE_ARCHIVED_PAPER"
)

// Audit target types.
const (
	AuditTargetPaper         = "paper"
	AuditTargetUser          = "user"
	AuditTargetInvite        = "invite"
	AuditTargetConference    = "conference"
	AuditTargetVolume        = "volume"
	AuditTargetIssue         = "issue"
	AuditTargetArchivedPaper = "archived_paper"
)

// AuditLog represents an audit trail record. Rows are append-only.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	ActorEmail string          `db:"actor_email" json:"actor_email"`
	Action     string          `db:"action" json:"action"`
	TargetID   string          `db:"target_id" json:"target_id"`
	TargetType string          `db:"target_type" json:"target_type"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditEntry is the input of a single audit write.
type AuditEntry struct {
	Action     string
	TargetID   string
	TargetType string
	Actor      *User
	Metadata   map[string]interface{}
}
