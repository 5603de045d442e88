package student

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/db/models"
	authmiddleware "github.com/campus-sms/campus-sms/internal/web/middleware/auth"
	"github.com/campus-sms/campus-sms/internal/web/middleware/requestid"
)

// setupTestApp wires the full request path: request id, bearer auth, guards
// and the handler itself, against an in-memory database.
func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.UserPermission{},
		&models.RefreshToken{},
		&models.Student{},
		&models.Course{},
		&models.Grade{},
		&models.Attendance{},
		&models.AuditLog{},
	))

	svc := auth.NewService(db)

	admin := models.User{Email: "admin@example.com", Role: "admin", IsActive: true}
	require.NoError(t, db.Create(&admin).Error)

	token, _, err := svc.IssueRefreshToken(&admin)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(authmiddleware.New(svc))

	handler := Service{}
	handler.Init(app, &config.Config{}, db, svc)

	return app, db, token
}

func apiRequest(t *testing.T, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestCreateStudentEndToEnd(t *testing.T) {
	app, db, token := setupTestApp(t)

	resp := apiRequest(t, app, fiber.MethodPost, "/api/students", token, fiber.Map{
		"student_number": "S1",
		"first_name":     "Ada",
		"last_name":      "Lovelace",
		"email":          "ada@example.com",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created int64
	require.NoError(t, db.Model(&models.Student{}).Count(&created).Error)
	assert.Equal(t, int64(1), created)

	// the mutation left an audit trail
	var row models.AuditLog
	require.NoError(t, db.Where("action = ? AND resource = ?",
		models.AuditActionCreate, "student").First(&row).Error)
	assert.True(t, row.Success)
	assert.NotEmpty(t, row.RequestID)

	// duplicate natural key
	resp = apiRequest(t, app, fiber.MethodPost, "/api/students", token, fiber.Map{
		"student_number": "S1",
		"first_name":     "Grace",
		"last_name":      "Hopper",
		"email":          "ada@example.com",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestStudentEndpointsRequireToken(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := apiRequest(t, app, fiber.MethodGet, "/api/students", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = apiRequest(t, app, fiber.MethodGet, "/api/students", "garbage-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateStudentEmailConflict(t *testing.T) {
	app, db, token := setupTestApp(t)

	first := models.Student{StudentNumber: "S1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	require.NoError(t, db.Create(&first).Error)
	second := models.Student{StudentNumber: "S2", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"}
	require.NoError(t, db.Create(&second).Error)

	resp := apiRequest(t, app, fiber.MethodPatch, fmt.Sprintf("/api/students/%d", second.ID), token, fiber.Map{
		"email": "ada@example.com",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var unchanged models.Student
	require.NoError(t, db.First(&unchanged, second.ID).Error)
	assert.Equal(t, "grace@example.com", unchanged.Email)
}

func TestDeleteAndRestoreStudent(t *testing.T) {
	app, db, token := setupTestApp(t)

	s := models.Student{StudentNumber: "S1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	require.NoError(t, db.Create(&s).Error)

	resp := apiRequest(t, app, fiber.MethodDelete, fmt.Sprintf("/api/students/%d", s.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = apiRequest(t, app, fiber.MethodGet, fmt.Sprintf("/api/students/%d", s.ID), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = apiRequest(t, app, fiber.MethodPost, fmt.Sprintf("/api/students/%d/restore", s.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = apiRequest(t, app, fiber.MethodGet, fmt.Sprintf("/api/students/%d", s.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// restoring a live row is a conflict
	resp = apiRequest(t, app, fiber.MethodPost, fmt.Sprintf("/api/students/%d/restore", s.ID), token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var actions []string
	require.NoError(t, db.Model(&models.AuditLog{}).Where("resource = ?", "student").
		Order("id ASC").Pluck("action", &actions).Error)
	assert.Contains(t, actions, models.AuditActionDelete)
	assert.Contains(t, actions, models.AuditActionRestore)
}
