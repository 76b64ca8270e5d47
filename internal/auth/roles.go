package auth

// Role represents a caller role.
type Role string

const (
	// RoleViewer may read schedules and calculations.
	RoleViewer Role = "viewer"
	// RoleEditor may also create schedules, add events and run calculations.
	RoleEditor Role = "editor"
)

// NormalizeRole validates a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleEditor:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	default:
		return 0
	}
}
