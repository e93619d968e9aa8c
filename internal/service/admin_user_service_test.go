package service

import (
	"context"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
)

type fakeDepartmentRepo struct {
	departments map[uint]models.Department
	linkedUsers map[uint]int64
	nextID      uint
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{
		departments: make(map[uint]models.Department),
		linkedUsers: make(map[uint]int64),
		nextID:      100,
	}
}

func (f *fakeDepartmentRepo) List(_ context.Context) ([]models.Department, error) {
	departments := make([]models.Department, 0, len(f.departments))
	for _, department := range f.departments {
		departments = append(departments, department)
	}
	return departments, nil
}

func (f *fakeDepartmentRepo) GetByID(_ context.Context, id uint) (models.Department, error) {
	department, ok := f.departments[id]
	if !ok {
		return models.Department{}, gorm.ErrRecordNotFound
	}
	return department, nil
}

func (f *fakeDepartmentRepo) Create(_ context.Context, department *models.Department) error {
	f.nextID++
	department.ID = f.nextID
	f.departments[department.ID] = *department
	return nil
}

func (f *fakeDepartmentRepo) Update(_ context.Context, department *models.Department) error {
	f.departments[department.ID] = *department
	return nil
}

func (f *fakeDepartmentRepo) Delete(_ context.Context, id uint) error {
	delete(f.departments, id)
	return nil
}

func (f *fakeDepartmentRepo) CountLinked(_ context.Context, id uint) (int64, int64, error) {
	return f.linkedUsers[id], 0, nil
}

func adminFixture() (*fakeUserRepo, *fakeDepartmentRepo, *fakeSubjectRepo, *fakeAudit, AdminUserService, Actor) {
	users := newFakeUserRepo()
	departments := newFakeDepartmentRepo()
	subjects := newFakeSubjectRepo()
	audit := &fakeAudit{}

	departmentID := uint(3)
	departments.departments[3] = models.Department{ID: 3, Name: "Computer Science", Code: "CS"}
	subjects.subjects[7] = models.Subject{ID: 7, Name: "Algorithms", DepartmentID: 3}

	users.profiles[11] = models.Profile{ID: 11, FullName: "Teacher One", Email: "teacher@example.com", DepartmentID: &departmentID}
	users.roles[11] = models.RoleTeacher
	users.profiles[50] = models.Profile{ID: 50, FullName: "Administrator", Email: "admin@example.com"}
	users.roles[50] = models.RoleAdmin

	svc := NewAdminUserService(users, departments, subjects, audit, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	return users, departments, subjects, audit, svc, Actor{ID: 50, Role: models.RoleAdmin}
}

func TestAdminCreateUserHashesPassword(t *testing.T) {
	users, _, _, audit, svc, actor := adminFixture()

	departmentID := uint(3)
	created, err := svc.CreateUser(context.Background(), actor, dto.AdminUserCreateRequest{
		Email:        " HOD@Example.com ",
		Password:     "correct-horse",
		FullName:     "New Head",
		Role:         models.RoleHOD,
		DepartmentID: &departmentID,
	})
	require.NoError(t, err)
	require.Equal(t, "hod@example.com", created.Email)
	require.Equal(t, models.RoleHOD, created.Role)

	stored := users.profiles[created.ID]
	require.NotEqual(t, "correct-horse", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))
	require.Equal(t, "user.created", audit.entries[len(audit.entries)-1].Action)
}

func TestAdminCreateUserRejectsDuplicateEmail(t *testing.T) {
	_, _, _, _, svc, actor := adminFixture()

	departmentID := uint(3)
	_, err := svc.CreateUser(context.Background(), actor, dto.AdminUserCreateRequest{
		Email:        "teacher@example.com",
		Password:     "correct-horse",
		FullName:     "Impostor",
		Role:         models.RoleTeacher,
		DepartmentID: &departmentID,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAdminCreateUserRequiresDepartmentForTeacher(t *testing.T) {
	_, _, _, _, svc, actor := adminFixture()

	_, err := svc.CreateUser(context.Background(), actor, dto.AdminUserCreateRequest{
		Email:    "loose@example.com",
		Password: "correct-horse",
		FullName: "Loose Teacher",
		Role:     models.RoleTeacher,
	})
	require.ErrorIs(t, err, ErrRoleNeedsDepartment)
}

func TestAdminCannotChangeOwnRole(t *testing.T) {
	_, _, _, _, svc, actor := adminFixture()

	role := models.RoleTeacher
	_, err := svc.UpdateUser(context.Background(), actor, actor.ID, dto.AdminUserUpdateRequest{Role: &role})
	require.ErrorIs(t, err, ErrSelfDemotion)

	require.ErrorIs(t, svc.DeleteUser(context.Background(), actor, actor.ID), ErrSelfDemotion)
}

func TestAdminDeleteUserClearsAssignments(t *testing.T) {
	users, _, subjects, _, svc, actor := adminFixture()
	subjects.assignments[[2]uint{11, 7}] = true

	require.NoError(t, svc.DeleteUser(context.Background(), actor, 11))

	_, ok := users.profiles[11]
	require.False(t, ok)
	require.False(t, subjects.assignments[[2]uint{11, 7}])
}

func TestAdminDeleteDepartmentRefusedWhileLinked(t *testing.T) {
	_, departments, _, _, svc, actor := adminFixture()
	departments.linkedUsers[3] = 2

	err := svc.DeleteDepartment(context.Background(), actor, 3)
	require.ErrorIs(t, err, ErrDepartmentInUse)
	_, ok := departments.departments[3]
	require.True(t, ok)
}

func TestAdminDeleteDepartmentWhenEmpty(t *testing.T) {
	_, departments, _, audit, svc, actor := adminFixture()
	departments.departments[9] = models.Department{ID: 9, Name: "Dormant"}

	require.NoError(t, svc.DeleteDepartment(context.Background(), actor, 9))
	_, ok := departments.departments[9]
	require.False(t, ok)
	require.Equal(t, "department.deleted", audit.entries[len(audit.entries)-1].Action)
}

func TestAdminAssignSubjectRequiresTeacherRole(t *testing.T) {
	users, _, subjects, _, svc, actor := adminFixture()
	users.profiles[30] = models.Profile{ID: 30, FullName: "Head", Email: "head@example.com"}
	users.roles[30] = models.RoleHOD

	err := svc.AssignSubject(context.Background(), actor, dto.SubjectAssignmentRequest{TeacherID: 30, SubjectID: 7})
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	require.NoError(t, svc.AssignSubject(context.Background(), actor, dto.SubjectAssignmentRequest{TeacherID: 11, SubjectID: 7}))
	require.True(t, subjects.assignments[[2]uint{11, 7}])
}

func TestAdminOperationsRequireAdminRole(t *testing.T) {
	_, _, _, _, svc, _ := adminFixture()

	hod := Actor{ID: 30, Role: models.RoleHOD}
	_, err := svc.ListUsers(context.Background(), hod)
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = svc.CreateDepartment(context.Background(), hod, dto.DepartmentRequest{Name: "Physics"})
	require.ErrorIs(t, err, ErrRoleNotAllowed)
}
