// Package main provides the entry point for the Campus SMS records backend.
// It runs a Fiber web service exposing student, course, grade and attendance
// records behind fine-grained permission checks, with an append-only audit
// trail, a uniform soft-delete discipline and AES-256-GCM encrypted backups.
// The application uses gorm with a sqlite datastore for persistence.
package main
