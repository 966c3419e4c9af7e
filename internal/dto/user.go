package dto

// UpdateUserRoleRequest changes a user's role.
type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// CreateInviteRequest invites an email address to join with a role.
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=AUTHOR REVIEWER EDITOR DEAN"`
}

// AcceptInviteRequest redeems an invite token for the authenticated identity.
type AcceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}
