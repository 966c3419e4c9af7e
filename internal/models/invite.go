package models

import "time"

// InviteStatus is the lifecycle state of an invite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusExpired  InviteStatus = "EXPIRED"
)

// Invite grants a role to whoever signs up with the invited email.
type Invite struct {
	ID         string       `db:"id" json:"id"`
	Email      string       `db:"email" json:"email"`
	Role       UserRole     `db:"role" json:"role"`
	TokenHash  string       `db:"token_hash" json:"-"`
	Status     InviteStatus `db:"status" json:"status"`
	InvitedBy  string       `db:"invited_by" json:"invited_by"`
	ExpiresAt  time.Time    `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time   `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// Expired reports whether the invite is past its expiry at now.
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IssuedInvite is returned once on creation; Token is never stored in plain text.
type IssuedInvite struct {
	Invite
	Token string `json:"token"`
}
