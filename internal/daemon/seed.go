package daemon

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/auth"
	"github.com/campus-sms/campus-sms/internal/db/controller/setting"
	"github.com/campus-sms/campus-sms/internal/db/models"
)

// seedRevision is bumped whenever the canonical catalogue below changes.
// The applied revision is stored in the settings table for inspection only;
// seeding is additive and safe to run on every boot.
const seedRevision = 1

const seedRevisionSetting = "seed_revision"

type seedPermission struct {
	key         string
	description string
}

// canonicalPermissions is the catalogue of permissions every installation
// carries. Seeding inserts missing entries and never deletes or deactivates
// operator additions.
var canonicalPermissions = []seedPermission{ //nolint:gochecknoglobals
	{auth.PermAll, "Global wildcard, every permission"},

	{auth.PermStudentsView, "View student records"},
	{auth.PermStudentsCreate, "Create student records"},
	{auth.PermStudentsEdit, "Edit student records"},
	{auth.PermStudentsDelete, "Archive student records"},
	{auth.PermStudentsRestore, "Restore archived student records"},
	{"students:*", "All student operations"},

	{auth.PermCoursesView, "View courses"},
	{auth.PermCoursesCreate, "Create courses"},
	{auth.PermCoursesEdit, "Edit courses"},
	{auth.PermCoursesDelete, "Archive courses"},
	{"courses:*", "All course operations"},

	{auth.PermGradesView, "View grades"},
	{auth.PermGradesCreate, "Record grades"},
	{auth.PermGradesEdit, "Edit grades"},
	{auth.PermGradesDelete, "Archive grades"},
	{"grades:*", "All grade operations"},

	{auth.PermAttendanceView, "View attendance records"},
	{auth.PermAttendanceCreate, "Record attendance"},
	{auth.PermAttendanceEdit, "Edit attendance records"},
	{"attendance:*", "All attendance operations"},

	{auth.PermPerformanceView, "View performance summaries"},
	{auth.PermHighlightsView, "View student highlights"},

	{auth.PermReportsView, "View generated reports"},
	{auth.PermReportsCreate, "Generate reports"},
	{auth.PermReportsExport, "Export reports"},
	{"reports:*", "All report operations"},

	{auth.PermAnalyticsView, "View analytics summaries"},
	{auth.PermAnalyticsExport, "Export analytics data"},

	{"students.self:read", "Read own student record"},
	{"grades.self:read", "Read own grades"},
	{"attendance.self:read", "Read own attendance"},
	{"performance.self:read", "Read own performance summary"},
	{"highlights.self:read", "Read own highlights"},

	{auth.PermUsersManage, "Manage user accounts"},
	{auth.PermPermissionsManage, "Manage roles, permissions and grants"},
	{auth.PermAuditView, "Read the audit log"},
	{auth.PermAuditExport, "Export audit log entries"},
	{auth.PermSecurityView, "View security events and account lockouts"},
	{auth.PermSecurityManage, "Manage security settings and clear lockouts"},
	{auth.PermBackupsManage, "Create, restore and delete backups"},
	{auth.PermMaintenanceRun, "Run maintenance jobs"},
}

// systemRoles maps seeded role names to their permission keys. Every key must
// appear in canonicalPermissions.
var systemRoles = map[string][]string{ //nolint:gochecknoglobals
	"admin": {auth.PermAll},
	"teacher": {
		auth.PermStudentsView,
		auth.PermCoursesView,
		auth.PermGradesView,
		auth.PermGradesCreate,
		auth.PermGradesEdit,
		auth.PermAttendanceView,
		auth.PermAttendanceCreate,
		auth.PermAttendanceEdit,
		auth.PermPerformanceView,
		auth.PermHighlightsView,
		auth.PermReportsView,
		auth.PermAnalyticsView,
	},
	"staff": {
		auth.PermStudentsView,
		auth.PermStudentsCreate,
		auth.PermStudentsEdit,
		auth.PermCoursesView,
		auth.PermCoursesCreate,
		auth.PermCoursesEdit,
		auth.PermAttendanceView,
		auth.PermPerformanceView,
		auth.PermReportsView,
	},
	"student": {
		"students.self:read",
		"grades.self:read",
		"attendance.self:read",
		"performance.self:read",
		"highlights.self:read",
	},
}

// Seed inserts the canonical permission catalogue, the system roles with
// their grants, and a default admin account when the user table is empty.
// It only ever adds rows; operator changes survive reseeding.
func Seed(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if err := seedPermissions(db); err != nil {
		return err
	}

	if err := seedRoles(db); err != nil {
		return err
	}

	if err := seedAdminUser(db); err != nil {
		return err
	}

	return recordSeedRevision(db)
}

func seedPermissions(db *gorm.DB) error {
	for _, p := range canonicalPermissions {
		key := auth.NormalizeKey(p.key)
		resource, action := auth.SplitKey(key)

		perm := models.Permission{
			Key:         key,
			Resource:    resource,
			Action:      action,
			Description: p.description,
			IsActive:    true,
		}

		err := db.Where(models.Permission{Key: key}).
			Attrs(perm).
			FirstOrCreate(&models.Permission{}).Error
		if err != nil {
			return errors.Wrapf(err, "failed to seed permission %q", key)
		}
	}

	return nil
}

func seedRoles(db *gorm.DB) error {
	for name, keys := range systemRoles {
		var role models.Role

		err := db.Where(models.Role{Name: name}).
			Attrs(models.Role{Name: name, IsSystem: true}).
			FirstOrCreate(&role).Error
		if err != nil {
			return errors.Wrapf(err, "failed to seed role %q", name)
		}

		for _, key := range keys {
			var perm models.Permission

			err = db.Where("key = ?", auth.NormalizeKey(key)).First(&perm).Error
			if err != nil {
				return errors.Wrapf(err, "failed to look up permission %q for role %q", key, name)
			}

			link := models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}

			err = db.Where(link).FirstOrCreate(&models.RolePermission{}).Error
			if err != nil {
				return errors.Wrapf(err, "failed to link permission %q to role %q", key, name)
			}
		}
	}

	return nil
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to count users")
	}

	if count > 0 {
		return nil
	}

	admin := models.User{
		Email:     "admin@localhost",
		Password:  models.HashPassword("changeme"),
		FirstName: "Default",
		LastName:  "Admin",
		Role:      "admin",
		IsActive:  true,
	}

	if err := db.Create(&admin).Error; err != nil {
		return errors.Wrap(err, "failed to create default admin user")
	}

	var role models.Role
	if err := db.Where("name = ?", "admin").First(&role).Error; err != nil {
		return errors.Wrap(err, "failed to look up admin role")
	}

	link := models.UserRole{UserID: admin.ID, RoleID: role.ID}
	if err := db.Create(&link).Error; err != nil {
		return errors.Wrap(err, "failed to assign admin role")
	}

	log.Warn().Str("email", admin.Email).Msg("created default admin user, change the password")

	return nil
}

func recordSeedRevision(db *gorm.DB) error {
	return errors.Wrap(
		setting.SetInt(db, seedRevisionSetting, seedRevision),
		"failed to record seed revision",
	)
}
