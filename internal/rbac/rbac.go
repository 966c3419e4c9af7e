// Package rbac holds the static role hierarchy, permission matrix and route table.
package rbac

import (
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
)

// Permission is a capability tag granted to roles.
type Permission string

const (
	PermPaperCreate  Permission = "paper:create"
	PermPaperRead    Permission = "paper:read"
	PermPaperUpdate  Permission = "paper:update"
	PermPaperReview  Permission = "paper:review"
	PermPaperComment Permission = "paper:comment"
	PermPaperPublish Permission = "paper:publish"
	PermPaperDelete  Permission = "paper:delete"

	PermDOIAssign Permission = "doi:assign"
	PermDOIRevoke Permission = "doi:revoke"

	PermArchiveConferenceCreate Permission = "archive:conference:create"
	PermArchiveConferenceUpdate Permission = "archive:conference:update"
	PermArchiveConferenceDelete Permission = "archive:conference:delete"
	PermArchiveVolumeCreate     Permission = "archive:volume:create"
	PermArchiveVolumeUpdate     Permission = "archive:volume:update"
	PermArchiveVolumeDelete     Permission = "archive:volume:delete"
	PermArchiveIssueCreate      Permission = "archive:issue:create"
	PermArchiveIssueUpdate      Permission = "archive:issue:update"
	PermArchiveIssueDelete      Permission = "archive:issue:delete"
	PermArchivePaperCreate      Permission = "archive:paper:create"
	PermArchivePaperUpdate      Permission = "archive:paper:update"
	PermArchivePaperDelete      Permission = "archive:paper:delete"

	PermUserRead         Permission = "user:read"
	PermUserInvite       Permission = "user:invite"
	PermUserUpdateRole   Permission = "user:update_role"
	PermUserToggleActive Permission = "user:toggle_active"

	PermAuditRead          Permission = "audit:read"
	PermPlagiarismOverride Permission = "plagiarism:override"
)

var roleRank = map[models.UserRole]int{
	models.RoleAuthor:   0,
	models.RoleReviewer: 1,
	models.RoleEditor:   2,
	models.RoleDean:     3,
}

var (
	authorPermissions = []Permission{
		PermPaperCreate,
		PermPaperRead,
	}

	reviewerPermissions = []Permission{
		PermPaperRead,
		PermPaperUpdate,
		PermPaperReview,
		PermPaperComment,
	}

	editorPermissions = []Permission{
		PermPaperRead,
		PermPaperUpdate,
		PermPaperReview,
		PermPaperComment,
		PermPaperPublish,
		PermDOIAssign,
		PermArchiveConferenceCreate,
		PermArchiveConferenceUpdate,
		PermArchiveVolumeCreate,
		PermArchiveVolumeUpdate,
		PermArchiveIssueCreate,
		PermArchiveIssueUpdate,
		PermArchivePaperCreate,
		PermArchivePaperUpdate,
		PermUserRead,
		PermUserInvite,
		PermAuditRead,
	}

	deanPermissions = append(append([]Permission{}, editorPermissions...),
		PermPaperDelete,
		PermDOIRevoke,
		PermArchiveConferenceDelete,
		PermArchiveVolumeDelete,
		PermArchiveIssueDelete,
		PermArchivePaperDelete,
		PermUserUpdateRole,
		PermUserToggleActive,
		PermPlagiarismOverride,
	)
)

var rolePermissions = buildMatrix(map[models.UserRole][]Permission{
	models.RoleAuthor:   authorPermissions,
	models.RoleReviewer: reviewerPermissions,
	models.RoleEditor:   editorPermissions,
	models.RoleDean:     deanPermissions,
})

func buildMatrix(lists map[models.UserRole][]Permission) map[models.UserRole]map[Permission]struct{} {
	matrix := make(map[models.UserRole]map[Permission]struct{}, len(lists))
	for role, perms := range lists {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		matrix[role] = set
	}
	return matrix
}

// Rank returns the hierarchy rank of role, or -1 when unknown.
func Rank(role models.UserRole) int {
	if r, ok := roleRank[role]; ok {
		return r
	}
	return -1
}

// HasRole reports whether actual ranks at or above required.
func HasRole(actual, required models.UserRole) bool {
	a, r := Rank(actual), Rank(required)
	return a >= 0 && r >= 0 && a >= r
}

// HasPermission reports whether role is granted perm.
func HasPermission(role models.UserRole, perm Permission) bool {
	_, ok := rolePermissions[role][perm]
	return ok
}

// Permissions returns a copy of the permission list of role in declaration order.
func Permissions(role models.UserRole) []Permission {
	var src []Permission
	switch role {
	case models.RoleAuthor:
		src = authorPermissions
	case models.RoleReviewer:
		src = reviewerPermissions
	case models.RoleEditor:
		src = editorPermissions
	case models.RoleDean:
		src = deanPermissions
	}
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}

// ArchivePermission maps an archive level and verb ("create", "update", "delete") to its permission.
func ArchivePermission(level models.ArchiveLevel, verb string) Permission {
	return Permission("archive:" + string(level) + ":" + verb)
}
