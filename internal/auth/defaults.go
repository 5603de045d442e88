package auth

// defaultRoleGrants maps the legacy single-role string carried on pre-RBAC
// user accounts to the permission keys those accounts are assumed to hold.
// The map is consulted only when a user has no live direct grants and no role
// assignments — any explicit grant short-circuits the fallback.
var defaultRoleGrants = map[string][]string{ //nolint:gochecknoglobals
	"admin": {PermAll},
	"teacher": {
		PermStudentsView,
		PermCoursesView,
		PermGradesView,
		PermGradesCreate,
		PermGradesEdit,
		PermAttendanceView,
		PermAttendanceCreate,
		PermAttendanceEdit,
		PermPerformanceView,
		PermHighlightsView,
		PermReportsView,
		PermAnalyticsView,
	},
	"staff": {
		PermStudentsView,
		PermStudentsCreate,
		PermStudentsEdit,
		PermCoursesView,
		PermCoursesCreate,
		PermCoursesEdit,
		PermAttendanceView,
		PermPerformanceView,
		PermReportsView,
	},
	"student": {
		"students.self:read",
		"grades.self:read",
		"attendance.self:read",
		"performance.self:read",
		"highlights.self:read",
	},
}

// DefaultGrantsForRole returns the fallback permission keys for a legacy role
// string. Unknown roles have no fallback grants.
func DefaultGrantsForRole(role string) []string {
	grants, ok := defaultRoleGrants[role]
	if !ok {
		return nil
	}

	out := make([]string, len(grants))
	copy(out, grants)

	return out
}
