package auth

import "strings"

// Role is a portal access level. The ladder is strict:
// viewer < operator < admin.
type Role string

const (
	// RoleViewer reads alerts and sensor health.
	RoleViewer Role = "viewer"
	// RoleOperator additionally triggers scans and works alerts.
	RoleOperator Role = "operator"
	// RoleAdmin holds every permission.
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole maps a raw claim value onto the ladder, tolerating case and
// surrounding whitespace.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRank[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants at least the required level.
// Unknown roles grant nothing.
func RoleAtLeast(role, required Role) bool {
	have, ok := roleRank[role]
	if !ok {
		return false
	}
	want, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= want
}
