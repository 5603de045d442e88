package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

func TestSelfAccessAllowed(t *testing.T) {
	student := &models.User{ID: 42, Role: "student"}
	teacher := &models.User{ID: 42, Role: "teacher"}

	tests := []struct {
		name     string
		user     *models.User
		required string
		targetID string
		want     bool
	}{
		{"own record view", student, PermStudentsView, "42", true},
		{"own grades view", student, PermGradesView, "42", true},
		{"legacy dot key", student, "students.view", "42", true},
		{"other student", student, PermStudentsView, "7", false},
		{"non-student role", teacher, PermStudentsView, "42", false},
		{"mutation not covered", student, PermStudentsEdit, "42", false},
		{"delete not covered", student, PermStudentsDelete, "42", false},
		{"garbage target", student, PermStudentsView, "abc", false},
		{"empty target", student, PermStudentsView, "", false},
		{"nil user", nil, PermStudentsView, "42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelfAccessAllowed(tt.user, tt.required, tt.targetID))
		})
	}
}
