package attendance

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, *models.Student) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Attendance{}))

	student := models.Student{StudentNumber: "S1", FirstName: "Ada", LastName: "Lovelace", Email: "s1@example.com"}
	require.NoError(t, db.Create(&student).Error)

	return db, &student
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateValidatesStatus(t *testing.T) {
	db, student := setupTestDB(t)

	assert.Error(t, Create(db, &models.Attendance{
		StudentID: student.ID, Date: day(1), Status: "asleep",
	}))
	assert.NoError(t, Create(db, &models.Attendance{
		StudentID: student.ID, Date: day(1), Status: models.AttendanceExcused,
	}))
}

func TestForStudentWindow(t *testing.T) {
	db, student := setupTestDB(t)

	for d, status := range map[int]models.AttendanceStatus{
		1: models.AttendancePresent,
		2: models.AttendanceLate,
		5: models.AttendanceAbsent,
	} {
		require.NoError(t, Create(db, &models.Attendance{
			StudentID: student.ID, Date: day(d), Status: status,
		}))
	}

	// the upper bound is exclusive: day 5 is outside [1, 5)
	records, err := ForStudent(db, student.ID, day(1), day(5))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.AttendanceLate, records[0].Status)
	assert.Equal(t, models.AttendancePresent, records[1].Status)

	records, err = ForStudent(db, student.ID, day(1), day(6))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestForStudentRejectsInvertedWindow(t *testing.T) {
	db, student := setupTestDB(t)

	_, err := ForStudent(db, student.ID, day(5), day(1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestUpdate(t *testing.T) {
	db, student := setupTestDB(t)

	a := models.Attendance{StudentID: student.ID, Date: day(1), Status: models.AttendanceAbsent}
	require.NoError(t, Create(db, &a))

	old, updated, err := Update(db, a.ID, map[string]any{
		"status": string(models.AttendanceExcused),
		"note":   "medical certificate",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, old.Status)
	assert.Equal(t, models.AttendanceExcused, updated.Status)
	assert.Equal(t, "medical certificate", updated.Note)
}

func TestSoftDeleteHidesRecord(t *testing.T) {
	db, student := setupTestDB(t)

	a := models.Attendance{StudentID: student.ID, Date: day(1), Status: models.AttendancePresent}
	require.NoError(t, Create(db, &a))

	require.NoError(t, SoftDelete(db, a.ID))

	_, err := GetByID(db, a.ID, false)
	assert.ErrorIs(t, err, ErrAttendanceNotFound)

	records, err := ForStudent(db, student.ID, day(1), day(2))
	require.NoError(t, err)
	assert.Empty(t, records)
}
