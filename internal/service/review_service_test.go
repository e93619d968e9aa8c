package service

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
)

type fakePaperRepo struct {
	papers      map[uint]models.Paper
	listOrder   []uint
	selectErr   error
	selectCalls int
}

func newFakePaperRepo(papers ...models.Paper) *fakePaperRepo {
	repo := &fakePaperRepo{papers: make(map[uint]models.Paper)}
	for _, paper := range papers {
		repo.papers[paper.ID] = paper
		repo.listOrder = append(repo.listOrder, paper.ID)
	}
	return repo
}

func (f *fakePaperRepo) List(_ context.Context, filter repository.PaperFilter) ([]models.Paper, error) {
	var result []models.Paper
	for _, id := range f.listOrder {
		paper := f.papers[id]
		if filter.UploadedBy != nil && paper.UploadedBy != *filter.UploadedBy {
			continue
		}
		if filter.Status != nil && paper.Status != *filter.Status {
			continue
		}
		if filter.ExcludeStatus != nil && paper.Status == *filter.ExcludeStatus {
			continue
		}
		if filter.IsSelected != nil && paper.IsSelected != *filter.IsSelected {
			continue
		}
		if filter.DepartmentID != nil && paper.Subject.DepartmentID != *filter.DepartmentID {
			continue
		}
		result = append(result, paper)
	}
	// Mirror the repository ordering contract: uploaded_at descending with
	// the id as tiebreaker.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].UploadedAt.After(result[j].UploadedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (f *fakePaperRepo) GetByID(_ context.Context, id uint) (models.Paper, error) {
	paper, ok := f.papers[id]
	if !ok {
		return models.Paper{}, gorm.ErrRecordNotFound
	}
	return paper, nil
}

func (f *fakePaperRepo) Create(_ context.Context, paper *models.Paper) error {
	if paper.ID == 0 {
		paper.ID = uint(len(f.papers) + 1)
	}
	f.papers[paper.ID] = *paper
	f.listOrder = append(f.listOrder, paper.ID)
	return nil
}

func (f *fakePaperRepo) Update(_ context.Context, paper *models.Paper) error {
	f.papers[paper.ID] = *paper
	return nil
}

func (f *fakePaperRepo) CountVersions(_ context.Context, subjectID uint, examType string, uploadedBy uint, setName string) (int64, error) {
	var count int64
	for _, paper := range f.papers {
		if paper.SubjectID == subjectID && paper.ExamType == examType && paper.UploadedBy == uploadedBy && paper.SetName == setName {
			count++
		}
	}
	return count, nil
}

// Select mirrors the transactional cascade against the in-memory map.
func (f *fakePaperRepo) Select(_ context.Context, paperID, subjectID uint, examType string) error {
	f.selectCalls++
	if f.selectErr != nil {
		return f.selectErr
	}

	target, ok := f.papers[paperID]
	if !ok || (target.Status != models.PaperStatusApproved && target.Status != models.PaperStatusLocked) {
		return repository.ErrSelectionConflict
	}

	for id, paper := range f.papers {
		if id == paperID || paper.SubjectID != subjectID || paper.ExamType != examType {
			continue
		}
		paper.IsSelected = false
		if paper.Status == models.PaperStatusApproved {
			paper.Status = models.PaperStatusRejected
			paper.Feedback = repository.SelectionFeedback
		}
		f.papers[id] = paper
	}

	target.Status = models.PaperStatusLocked
	target.IsSelected = true
	f.papers[paperID] = target
	return nil
}

type fakeAudit struct {
	entries []AuditEntry
}

func (f *fakeAudit) Record(_ context.Context, _ Actor, entry AuditEntry) (dto.AuditEntryResponse, error) {
	f.entries = append(f.entries, entry)
	return dto.AuditEntryResponse{}, nil
}

func reviewFixture() (*fakePaperRepo, *fakeAudit, ReviewService, Actor) {
	departmentID := uint(3)
	subject := models.Subject{ID: 7, Name: "Algorithms", DepartmentID: departmentID}

	papers := []models.Paper{
		{ID: 1, SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A", Status: models.PaperStatusPendingReview, UploadedBy: 11, UploadedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), Subject: subject},
		{ID: 2, SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set B", Status: models.PaperStatusPendingReview, UploadedBy: 12, UploadedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Subject: subject},
		{ID: 3, SubjectID: 7, ExamType: models.ExamTypeEndTerm, SetName: "Set A", Status: models.PaperStatusPendingReview, UploadedBy: 11, UploadedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Subject: subject},
	}

	repo := newFakePaperRepo(papers...)
	audit := &fakeAudit{}
	svc := NewReviewService(repo, audit, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	actor := Actor{ID: 99, Role: models.RoleHOD, DepartmentID: &departmentID}
	return repo, audit, svc, actor
}

func TestListForReviewAnonymizesAndGroups(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	groups, err := svc.ListForReview(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	require.Equal(t, models.ExamTypeMidTerm, groups[0].ExamType)
	require.Len(t, groups[0].Submissions, 2)
	require.Equal(t, "Submission 1", groups[0].Submissions[0].Label)
	require.Equal(t, "Submission 2", groups[0].Submissions[1].Label)

	require.Equal(t, models.ExamTypeEndTerm, groups[1].ExamType)
	require.Equal(t, "Submission 1", groups[1].Submissions[0].Label)
}

func TestListForReviewLabelsStableForEqualUploadTimes(t *testing.T) {
	departmentID := uint(3)
	subject := models.Subject{ID: 7, Name: "Algorithms", DepartmentID: departmentID}
	uploadedAt := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	repo := newFakePaperRepo(
		models.Paper{ID: 1, SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A", Status: models.PaperStatusPendingReview, UploadedBy: 11, UploadedAt: uploadedAt, Subject: subject},
		models.Paper{ID: 2, SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set B", Status: models.PaperStatusPendingReview, UploadedBy: 12, UploadedAt: uploadedAt, Subject: subject},
		models.Paper{ID: 3, SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set C", Status: models.PaperStatusPendingReview, UploadedBy: 13, UploadedAt: uploadedAt, Subject: subject},
	)
	svc := NewReviewService(repo, &fakeAudit{}, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	actor := Actor{ID: 99, Role: models.RoleHOD, DepartmentID: &departmentID}

	first, err := svc.ListForReview(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, first, 1)

	labels := make(map[uint]string, 3)
	for _, submission := range first[0].Submissions {
		labels[submission.ID] = submission.Label
	}
	require.Len(t, labels, 3)

	// Nothing changed between the fetches, so every paper must keep its label.
	second, err := svc.ListForReview(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, second, 1)
	for _, submission := range second[0].Submissions {
		require.Equal(t, labels[submission.ID], submission.Label)
	}

	// The id tiebreaker decides ties: newest id is Submission 1.
	require.Equal(t, uint(3), first[0].Submissions[0].ID)
	require.Equal(t, "Submission 1", first[0].Submissions[0].Label)
	require.Equal(t, uint(1), first[0].Submissions[2].ID)
	require.Equal(t, "Submission 3", first[0].Submissions[2].Label)
}

func TestListForReviewRequiresHeadRole(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	actor.Role = models.RoleTeacher
	_, err := svc.ListForReview(context.Background(), actor)
	require.ErrorIs(t, err, ErrRoleNotAllowed)

	actor.Role = models.RoleHOD
	actor.DepartmentID = nil
	_, err = svc.ListForReview(context.Background(), actor)
	require.ErrorIs(t, err, ErrNoDepartment)
}

func TestApproveSetsReviewer(t *testing.T) {
	repo, audit, svc, actor := reviewFixture()

	response, err := svc.Approve(context.Background(), actor, 1)
	require.NoError(t, err)
	require.Equal(t, models.PaperStatusApproved, response.Status)

	stored := repo.papers[1]
	require.NotNil(t, stored.ApprovedBy)
	require.Equal(t, actor.ID, *stored.ApprovedBy)
	require.NotNil(t, stored.ApprovedAt)

	require.Len(t, audit.entries, 1)
	require.Equal(t, "paper.approved", audit.entries[0].Action)
}

func TestApproveRejectsForeignDepartment(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	other := uint(44)
	actor.DepartmentID = &other
	_, err := svc.Approve(context.Background(), actor, 1)
	require.ErrorIs(t, err, ErrNotDepartmentHead)
}

func TestApproveUnknownPaper(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	_, err := svc.Approve(context.Background(), actor, 404)
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestRejectRequiresFeedback(t *testing.T) {
	repo, _, svc, actor := reviewFixture()

	_, err := svc.Reject(context.Background(), actor, 1, dto.RejectPaperRequest{Feedback: "   "})
	require.ErrorIs(t, err, ErrFeedbackRequired)
	require.Equal(t, models.PaperStatusPendingReview, repo.papers[1].Status)
}

func TestRejectStoresFeedback(t *testing.T) {
	repo, _, svc, actor := reviewFixture()

	response, err := svc.Reject(context.Background(), actor, 2, dto.RejectPaperRequest{Feedback: "question 4 is ambiguous"})
	require.NoError(t, err)
	require.Equal(t, models.PaperStatusRejected, response.Status)
	require.Equal(t, "question 4 is ambiguous", repo.papers[2].Feedback)
}

func TestRejectedPaperCannotBeApproved(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	_, err := svc.Reject(context.Background(), actor, 1, dto.RejectPaperRequest{Feedback: "too easy"})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), actor, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSelectRequiresApprovedStatus(t *testing.T) {
	repo, _, svc, actor := reviewFixture()

	_, err := svc.Select(context.Background(), actor, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Zero(t, repo.selectCalls)
}

func TestSelectCascadesGroup(t *testing.T) {
	repo, audit, svc, actor := reviewFixture()

	_, err := svc.Approve(context.Background(), actor, 1)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), actor, 2)
	require.NoError(t, err)

	response, err := svc.Select(context.Background(), actor, 1)
	require.NoError(t, err)
	require.Equal(t, models.PaperStatusLocked, response.Status)
	require.True(t, response.IsSelected)

	sibling := repo.papers[2]
	require.Equal(t, models.PaperStatusRejected, sibling.Status)
	require.Equal(t, repository.SelectionFeedback, sibling.Feedback)
	require.False(t, sibling.IsSelected)

	// the other exam type group is untouched
	require.Equal(t, models.PaperStatusPendingReview, repo.papers[3].Status)

	var actions []string
	for _, entry := range audit.entries {
		actions = append(actions, entry.Action)
	}
	require.Contains(t, actions, "paper.selected")
}

func TestSelectSurfacesConflict(t *testing.T) {
	repo, _, svc, actor := reviewFixture()

	_, err := svc.Approve(context.Background(), actor, 1)
	require.NoError(t, err)

	repo.selectErr = repository.ErrSelectionConflict
	_, err = svc.Select(context.Background(), actor, 1)
	require.ErrorIs(t, err, ErrSelectionConflict)
}

func TestAnonymousResponseCarriesNoUploader(t *testing.T) {
	_, _, svc, actor := reviewFixture()

	groups, err := svc.ListForReview(context.Background(), actor)
	require.NoError(t, err)

	// The projection type has no uploader field; verify the labels are the
	// only identity surfaced per submission.
	for _, group := range groups {
		seen := make(map[string]struct{})
		for _, submission := range group.Submissions {
			require.NotEmpty(t, submission.Label)
			_, duplicate := seen[submission.Label]
			require.False(t, duplicate)
			seen[submission.Label] = struct{}{}
		}
	}
}
