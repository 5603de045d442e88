// Package models contains database model definitions.
package models

// Setting represents an operational key/value setting stored in the database,
// such as the applied seed revision or the backup retention count.
type Setting struct {
	ID    uint64 `gorm:"primaryKey"`
	Name  string `gorm:"unique"`
	Value []byte `gorm:"type:blob"`
}
