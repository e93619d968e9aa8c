package middleware

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Department{}, &models.Profile{}, &models.UserRole{}))

	users := repository.NewUserRepository(db)

	app := fiber.New()
	app.Get("/protected", JWTProtected(testSecret), LoadActor(users), RequireRole(models.RoleHOD), func(c *fiber.Ctx) error {
		actor, _ := ActorFromCtx(c)
		return c.JSON(actor)
	})
	return app, db
}

func seedHOD(t *testing.T, db *gorm.DB) models.Profile {
	t.Helper()

	require.NoError(t, db.Create(&models.Department{ID: 3, Name: "Computer Science"}).Error)
	departmentID := uint(3)
	profile := models.Profile{ID: 30, FullName: "Head", Email: "head@example.com", PasswordHash: "x", DepartmentID: &departmentID}
	require.NoError(t, db.Create(&profile).Error)
	require.NoError(t, db.Create(&models.UserRole{UserID: 30, Role: models.RoleHOD}).Error)
	return profile
}

func TestAuthChainResolvesActorFromStore(t *testing.T) {
	app, db := authTestApp(t)
	seedHOD(t, db)

	// The token carries a stale role claim; the store decides authorization.
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "30",
		"role": "teacher",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthChainRejectsMissingToken(t *testing.T) {
	app, _ := authTestApp(t)

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthChainRejectsWrongSecret(t *testing.T) {
	app, db := authTestApp(t)
	seedHOD(t, db)

	token := signToken(t, "other-secret", jwt.MapClaims{"sub": "30"})
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthChainRejectsDeletedAccount(t *testing.T) {
	app, _ := authTestApp(t)

	token := signToken(t, testSecret, jwt.MapClaims{"sub": "99"})
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	app, db := authTestApp(t)
	seedHOD(t, db)
	require.NoError(t, db.Model(&models.UserRole{}).Where("user_id = ?", 30).Update("role", models.RoleTeacher).Error)

	token := signToken(t, testSecret, jwt.MapClaims{"sub": "30"})
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
