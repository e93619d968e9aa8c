package service

import (
	"context"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
)

type fakeNotificationRepo struct {
	rows []models.Notification
}

func (f *fakeNotificationRepo) CreateBatch(_ context.Context, notifications []models.Notification) error {
	for i := range notifications {
		notifications[i].ID = uint(len(f.rows) + i + 1)
	}
	f.rows = append(f.rows, notifications...)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, userID uint, _, _ int) ([]models.Notification, error) {
	var result []models.Notification
	for _, row := range f.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uint) (models.Notification, error) {
	for i, row := range f.rows {
		if row.ID == id && row.UserID == userID {
			f.rows[i].Read = true
			return f.rows[i], nil
		}
	}
	return models.Notification{}, gorm.ErrRecordNotFound
}

type fakeUserRepo struct {
	profiles map[uint]models.Profile
	roles    map[uint]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		profiles: make(map[uint]models.Profile),
		roles:    make(map[uint]string),
	}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uint) (models.Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return models.Profile{}, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (models.Profile, error) {
	for _, profile := range f.profiles {
		if profile.Email == email {
			return profile, nil
		}
	}
	return models.Profile{}, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, profile *models.Profile) error {
	if profile.ID == 0 {
		profile.ID = uint(len(f.profiles) + 1)
	}
	f.profiles[profile.ID] = *profile
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, profile *models.Profile) error {
	f.profiles[profile.ID] = *profile
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uint) error {
	delete(f.profiles, id)
	delete(f.roles, id)
	return nil
}

func (f *fakeUserRepo) GetRole(_ context.Context, userID uint) (string, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return role, nil
}

func (f *fakeUserRepo) SetRole(_ context.Context, userID uint, role string) error {
	f.roles[userID] = role
	return nil
}

func (f *fakeUserRepo) ListByRoleAndDepartment(_ context.Context, role string, departmentID uint) ([]models.Profile, error) {
	var result []models.Profile
	for id, profile := range f.profiles {
		if f.roles[id] != role {
			continue
		}
		if profile.DepartmentID == nil || *profile.DepartmentID != departmentID {
			continue
		}
		result = append(result, profile)
	}
	return result, nil
}

func (f *fakeUserRepo) ListByIDs(_ context.Context, ids []uint) ([]models.Profile, error) {
	var result []models.Profile
	for _, id := range ids {
		if profile, ok := f.profiles[id]; ok {
			result = append(result, profile)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]models.Profile, error) {
	var result []models.Profile
	for _, profile := range f.profiles {
		result = append(result, profile)
	}
	return result, nil
}

func (f *fakeUserRepo) GetRoles(_ context.Context, userIDs []uint) (map[uint]string, error) {
	roles := make(map[uint]string, len(userIDs))
	for _, id := range userIDs {
		if role, ok := f.roles[id]; ok {
			roles[id] = role
		}
	}
	return roles, nil
}

func notificationFixture() (*fakeNotificationRepo, *fakeUserRepo, *fakeSubjectRepo, NotificationService, Actor) {
	departmentID := uint(3)
	otherDepartment := uint(4)

	users := newFakeUserRepo()
	users.profiles[11] = models.Profile{ID: 11, FullName: "Teacher One", DepartmentID: &departmentID}
	users.roles[11] = models.RoleTeacher
	users.profiles[12] = models.Profile{ID: 12, FullName: "Teacher Two", DepartmentID: &departmentID}
	users.roles[12] = models.RoleTeacher
	users.profiles[13] = models.Profile{ID: 13, FullName: "Outsider", DepartmentID: &otherDepartment}
	users.roles[13] = models.RoleTeacher

	subjects := newFakeSubjectRepo()
	subjects.subjects[7] = models.Subject{ID: 7, DepartmentID: departmentID}
	subjects.subjects[8] = models.Subject{ID: 8, DepartmentID: departmentID}
	subjects.assignments[[2]uint{11, 7}] = true
	subjects.assignments[[2]uint{11, 8}] = true
	subjects.assignments[[2]uint{13, 8}] = true

	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, users, subjects, nil, "examflow-test", nil, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))

	actor := Actor{ID: 99, Role: models.RoleHOD, DepartmentID: &departmentID}
	return repo, users, subjects, svc, actor
}

func TestBroadcastToDepartmentFansOut(t *testing.T) {
	repo, _, _, svc, actor := notificationFixture()

	result, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Deadline",
		Message:    "Submit mid term papers by Friday",
		Type:       models.NotificationTypeWarning,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.RecipientCount)
	require.Len(t, repo.rows, 2)

	recipients := map[uint]bool{}
	for _, row := range repo.rows {
		recipients[row.UserID] = true
		require.Equal(t, actor.ID, row.SenderID)
	}
	require.True(t, recipients[11])
	require.True(t, recipients[12])
	require.False(t, recipients[13])
}

func TestBroadcastBySubjectsDeduplicatesAndScopes(t *testing.T) {
	repo, _, _, svc, actor := notificationFixture()

	// teacher 11 is assigned to both subjects, teacher 13 is in another
	// department: exactly one row should be written.
	result, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Review",
		Message:    "Both papers need a second set",
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetSubjects,
		SubjectIDs: []uint{7, 8},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.RecipientCount)
	require.Len(t, repo.rows, 1)
	require.Equal(t, uint(11), repo.rows[0].UserID)
}

func TestBroadcastEmptyResolutionWritesNothing(t *testing.T) {
	repo, _, _, svc, actor := notificationFixture()

	result, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Hello",
		Message:    "Anybody there?",
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetSubjects,
		SubjectIDs: []uint{999},
	})
	require.NoError(t, err)
	require.Zero(t, result.RecipientCount)
	require.Empty(t, repo.rows)
}

func TestBroadcastSanitizesMessage(t *testing.T) {
	repo, _, _, svc, actor := notificationFixture()

	_, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Notice",
		Message:    `<script>alert("x")</script>Papers due Monday`,
		Type:       models.NotificationTypeCritical,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.NoError(t, err)
	require.NotEmpty(t, repo.rows)
	require.Equal(t, "Papers due Monday", repo.rows[0].Message)
}

func TestBroadcastRejectsScriptOnlyMessage(t *testing.T) {
	_, _, _, svc, actor := notificationFixture()

	_, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Notice",
		Message:    `<script>alert("x")</script>`,
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestBroadcastRequiresHeadRole(t *testing.T) {
	_, _, _, svc, actor := notificationFixture()

	actor.Role = models.RoleTeacher
	_, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Notice",
		Message:    "hi",
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestMarkReadIsScopedToRecipient(t *testing.T) {
	repo, _, _, svc, actor := notificationFixture()

	_, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Notice",
		Message:    "check your queue",
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.NoError(t, err)
	require.NotEmpty(t, repo.rows)

	target := repo.rows[0]
	_, err = svc.MarkRead(context.Background(), Actor{ID: 9999}, target.ID)
	require.Error(t, err)

	updated, err := svc.MarkRead(context.Background(), Actor{ID: target.UserID}, target.ID)
	require.NoError(t, err)
	require.True(t, updated.Read)
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	_, _, _, svc, actor := notificationFixture()

	stream, cleanup := svc.Subscribe(11)
	defer cleanup()

	_, err := svc.Broadcast(context.Background(), actor, dto.BroadcastRequest{
		Title:      "Live",
		Message:    "streamed notice",
		Type:       models.NotificationTypeInfo,
		TargetMode: models.BroadcastTargetDepartment,
	})
	require.NoError(t, err)

	select {
	case notification := <-stream:
		require.Equal(t, uint(11), notification.UserID)
		require.Equal(t, "streamed notice", notification.Message)
	default:
		t.Fatal("expected a buffered notification for subscriber")
	}
}
