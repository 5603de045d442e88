package auth

import (
	"strconv"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

// selfAccessKeys is the fixed allow-list of permissions for which a student
// principal may access rows whose identity equals their own id, even without
// a matching grant. The list is deliberately closed: self-access never covers
// mutations.
var selfAccessKeys = map[string]struct{}{ //nolint:gochecknoglobals
	PermStudentsView:    {},
	PermGradesView:      {},
	PermAttendanceView:  {},
	PermPerformanceView: {},
	PermHighlightsView:  {},
}

// SelfAccessAllowed reports whether the self-access rule grants the required
// permission: the key must be on the allow-list, the principal must be a
// student, and the operation's target identity must equal the principal's id.
// Callers consult this only after the ordinary permission check failed, and
// only when the operation opted in.
func SelfAccessAllowed(user *models.User, required, targetID string) bool {
	if user == nil || user.Role != "student" {
		return false
	}

	if _, ok := selfAccessKeys[NormalizeKey(required)]; !ok {
		return false
	}

	target, err := strconv.ParseUint(targetID, 10, 64)
	if err != nil {
		return false
	}

	return target == user.ID
}
