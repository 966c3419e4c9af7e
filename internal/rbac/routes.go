package rbac

import (
	"strings"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
)

type routeRule struct {
	prefix   string
	segments []string
	roles    []models.UserRole
}

var allRoles = []models.UserRole{models.RoleAuthor, models.RoleReviewer, models.RoleEditor, models.RoleDean}

// Paths are relative to the API prefix.
var routeTable = buildRoutes(map[string][]models.UserRole{
	"/admin":         {models.RoleEditor, models.RoleDean},
	"/admin/users":   {models.RoleDean},
	"/admin/invites": {models.RoleEditor, models.RoleDean},
	"/admin/audit":   {models.RoleEditor, models.RoleDean},
	"/papers":        allRoles,
	"/reviews":       {models.RoleReviewer, models.RoleEditor, models.RoleDean},
})

func buildRoutes(table map[string][]models.UserRole) []routeRule {
	rules := make([]routeRule, 0, len(table))
	for prefix, roles := range table {
		rules = append(rules, routeRule{prefix: prefix, segments: splitPath(prefix), roles: roles})
	}
	return rules
}

func splitPath(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hasSegmentPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// RouteRoles returns the roles allowed on path by the most specific matching rule.
// ok is false when no rule matches and the path is public.
func RouteRoles(path string) (roles []models.UserRole, ok bool) {
	segments := splitPath(path)
	best := -1
	for _, rule := range routeTable {
		if len(rule.segments) > best && hasSegmentPrefix(segments, rule.segments) {
			best = len(rule.segments)
			roles = rule.roles
			ok = true
		}
	}
	return roles, ok
}

// CanAccessRoute reports whether role may reach path. Unlisted paths are public.
func CanAccessRoute(role models.UserRole, path string) bool {
	roles, ok := RouteRoles(path)
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
