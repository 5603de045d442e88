package auth

import "strings"

// Permission key constants for the canonical resources of the system.
// Keys use the resource:action wire format; the reserved forms "resource:*"
// and "*:*" are wildcard grants.
const (
	// PermAll is the global wildcard granting every permission.
	PermAll = "*:*"

	// PermStudentsView allows viewing student records.
	PermStudentsView = "students:view"
	// PermStudentsCreate allows creating student records.
	PermStudentsCreate = "students:create"
	// PermStudentsEdit allows editing student records.
	PermStudentsEdit = "students:edit"
	// PermStudentsDelete allows soft-deleting student records.
	PermStudentsDelete = "students:delete"
	// PermStudentsRestore allows resurrecting tombstoned student records.
	PermStudentsRestore = "students:restore"

	// PermCoursesView allows viewing courses.
	PermCoursesView = "courses:view"
	// PermCoursesCreate allows creating courses.
	PermCoursesCreate = "courses:create"
	// PermCoursesEdit allows editing courses.
	PermCoursesEdit = "courses:edit"
	// PermCoursesDelete allows soft-deleting courses.
	PermCoursesDelete = "courses:delete"

	// PermGradesView allows viewing grades.
	PermGradesView = "grades:view"
	// PermGradesCreate allows recording grades.
	PermGradesCreate = "grades:create"
	// PermGradesEdit allows editing grades.
	PermGradesEdit = "grades:edit"
	// PermGradesDelete allows soft-deleting grades.
	PermGradesDelete = "grades:delete"

	// PermAttendanceView allows viewing attendance records.
	PermAttendanceView = "attendance:view"
	// PermAttendanceCreate allows recording attendance.
	PermAttendanceCreate = "attendance:create"
	// PermAttendanceEdit allows editing attendance records.
	PermAttendanceEdit = "attendance:edit"

	// PermPerformanceView allows viewing performance summaries.
	PermPerformanceView = "performance:view"
	// PermHighlightsView allows viewing student highlights.
	PermHighlightsView = "highlights:view"

	// PermReportsView allows viewing generated reports.
	PermReportsView = "reports:view"
	// PermReportsCreate allows generating reports.
	PermReportsCreate = "reports:create"
	// PermReportsExport allows exporting reports.
	PermReportsExport = "reports:export"

	// PermAnalyticsView allows viewing analytics summaries.
	PermAnalyticsView = "analytics:view"
	// PermAnalyticsExport allows exporting analytics data.
	PermAnalyticsExport = "analytics:export"

	// PermUsersManage allows managing user accounts.
	PermUsersManage = "users:manage"
	// PermPermissionsManage allows managing permissions, roles and grants.
	PermPermissionsManage = "permissions:manage"
	// PermAuditView allows reading the audit log.
	PermAuditView = "audit:view"
	// PermAuditExport allows exporting audit log entries.
	PermAuditExport = "audit:export"
	// PermSecurityView allows viewing security events and account lockouts.
	PermSecurityView = "security:view"
	// PermSecurityManage allows managing security settings and clearing lockouts.
	PermSecurityManage = "security:manage"
	// PermBackupsManage allows creating, restoring and deleting encrypted backups.
	PermBackupsManage = "backups:manage"
	// PermMaintenanceRun allows running maintenance jobs.
	PermMaintenanceRun = "maintenance:run"
)

// NormalizeKey canonicalises a permission key: lower-cased, trimmed, and with
// the legacy dot separator rewritten to ":" when the key carries a single "."
// and no ":". Self-scoped keys such as "students.self:read" already carry a
// ":" and keep their dot.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))

	if !strings.Contains(key, ":") && strings.Count(key, ".") == 1 {
		key = strings.Replace(key, ".", ":", 1)
	}

	return key
}

// SplitKey returns the resource and action parts of a normalised key.
// A key without a separator is treated as a bare resource with an empty action.
func SplitKey(key string) (resource, action string) {
	resource, action, found := strings.Cut(key, ":")
	if !found {
		return key, ""
	}

	return resource, action
}

// MatchKey reports whether a granted key satisfies a required key under the
// wildcard rules. Both arguments are normalised before comparison, so callers
// may pass raw input. "*" and "*:*" match everything; "resource:*" matches any
// action on the same resource.
func MatchKey(granted, required string) bool {
	granted = NormalizeKey(granted)
	required = NormalizeKey(required)

	if granted == "*" || granted == PermAll {
		return true
	}

	if granted == required {
		return true
	}

	if resource, action := SplitKey(granted); action == "*" {
		requiredResource, _ := SplitKey(required)
		return resource == requiredResource
	}

	return false
}
