package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "students:view", "students:view"},
		{"upper case", "STUDENTS:VIEW", "students:view"},
		{"surrounding space", "  students:view ", "students:view"},
		{"legacy dot form", "students.view", "students:view"},
		{"legacy dot upper", "Students.View", "students:view"},
		{"self scoped keeps dot", "students.self:read", "students.self:read"},
		{"two dots untouched", "a.b.c", "a.b.c"},
		{"wildcard", "*:*", "*:*"},
		{"bare star", "*", "*"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	inputs := []string{"students.view", "STUDENTS:VIEW", " grades.self:read ", "a.b.c", "*:*"}

	for _, in := range inputs {
		once := NormalizeKey(in)
		assert.Equal(t, once, NormalizeKey(once), "input %q", in)
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		in       string
		resource string
		action   string
	}{
		{"students:view", "students", "view"},
		{"students:*", "students", "*"},
		{"*:*", "*", "*"},
		{"bare", "bare", ""},
		{"students.self:read", "students.self", "read"},
	}

	for _, tt := range tests {
		resource, action := SplitKey(tt.in)
		assert.Equal(t, tt.resource, resource, "input %q", tt.in)
		assert.Equal(t, tt.action, action, "input %q", tt.in)
	}
}

func TestMatchKey(t *testing.T) {
	tests := []struct {
		name     string
		granted  string
		required string
		want     bool
	}{
		{"exact match", "students:view", "students:view", true},
		{"exact mismatch", "students:view", "students:edit", false},
		{"global wildcard", "*:*", "grades:delete", true},
		{"bare star", "*", "grades:delete", true},
		{"resource wildcard", "students:*", "students:edit", true},
		{"resource wildcard other resource", "students:*", "grades:view", false},
		{"legacy dot grant", "students.view", "students:view", true},
		{"legacy dot required", "students:view", "students.view", true},
		{"case folding", "STUDENTS:VIEW", "students:view", true},
		{"required wildcard is literal", "students:view", "students:*", false},
		{"empty grant", "", "students:view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchKey(tt.granted, tt.required))
		})
	}
}
