package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
)

// %PDF magic bytes so mimetype detection recognises the payload.
var pdfPayload = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

type fakeSubjectRepo struct {
	subjects    map[uint]models.Subject
	assignments map[[2]uint]bool
}

func newFakeSubjectRepo() *fakeSubjectRepo {
	return &fakeSubjectRepo{
		subjects:    make(map[uint]models.Subject),
		assignments: make(map[[2]uint]bool),
	}
}

func (f *fakeSubjectRepo) List(_ context.Context, departmentID *uint) ([]models.Subject, error) {
	var subjects []models.Subject
	for _, subject := range f.subjects {
		if departmentID != nil && subject.DepartmentID != *departmentID {
			continue
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

func (f *fakeSubjectRepo) GetByID(_ context.Context, id uint) (models.Subject, error) {
	subject, ok := f.subjects[id]
	if !ok {
		return models.Subject{}, gorm.ErrRecordNotFound
	}
	return subject, nil
}

func (f *fakeSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	if subject.ID == 0 {
		subject.ID = uint(len(f.subjects) + 1)
	}
	f.subjects[subject.ID] = *subject
	return nil
}

func (f *fakeSubjectRepo) Update(_ context.Context, subject *models.Subject) error {
	f.subjects[subject.ID] = *subject
	return nil
}

func (f *fakeSubjectRepo) Delete(_ context.Context, id uint) error {
	delete(f.subjects, id)
	return nil
}

func (f *fakeSubjectRepo) AssignTeacher(_ context.Context, teacherID, subjectID uint) error {
	f.assignments[[2]uint{teacherID, subjectID}] = true
	return nil
}

func (f *fakeSubjectRepo) UnassignTeacher(_ context.Context, teacherID, subjectID uint) error {
	delete(f.assignments, [2]uint{teacherID, subjectID})
	return nil
}

func (f *fakeSubjectRepo) DeleteAssignmentsByTeacher(_ context.Context, teacherID uint) error {
	for key := range f.assignments {
		if key[0] == teacherID {
			delete(f.assignments, key)
		}
	}
	return nil
}

func (f *fakeSubjectRepo) IsAssigned(_ context.Context, teacherID, subjectID uint) (bool, error) {
	return f.assignments[[2]uint{teacherID, subjectID}], nil
}

func (f *fakeSubjectRepo) ListAssignedSubjects(_ context.Context, teacherID uint) ([]models.Subject, error) {
	var subjects []models.Subject
	for key := range f.assignments {
		if key[0] == teacherID {
			subjects = append(subjects, f.subjects[key[1]])
		}
	}
	return subjects, nil
}

func (f *fakeSubjectRepo) ListTeacherIDsBySubjects(_ context.Context, subjectIDs []uint) ([]uint, error) {
	seen := make(map[uint]struct{})
	var ids []uint
	for key := range f.assignments {
		for _, subjectID := range subjectIDs {
			if key[1] == subjectID {
				if _, dup := seen[key[0]]; !dup {
					seen[key[0]] = struct{}{}
					ids = append(ids, key[0])
				}
			}
		}
	}
	return ids, nil
}

type fakeStorage struct {
	uploads int
	err     error
}

func (f *fakeStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads++
	return "examflow/papers/" + name, nil
}

func buildFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 10240)
	require.NoError(t, err)

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func paperFixture(t *testing.T) (*fakePaperRepo, *fakeSubjectRepo, *fakeStorage, PaperService, Actor) {
	t.Helper()

	departmentID := uint(3)
	subjects := newFakeSubjectRepo()
	subjects.subjects[7] = models.Subject{ID: 7, Name: "Algorithms", DepartmentID: departmentID}
	subjects.assignments[[2]uint{11, 7}] = true

	papers := newFakePaperRepo()
	storage := &fakeStorage{}
	svc := NewPaperService(papers, subjects, storage, &fakeAudit{}, validator.New(validator.WithRequiredStructEnabled()), 1, zerolog.New(io.Discard))

	actor := Actor{ID: 11, Role: models.RoleTeacher, DepartmentID: &departmentID}
	return papers, subjects, storage, svc, actor
}

func TestUploadCreatesPendingPaper(t *testing.T) {
	papers, _, storage, svc, actor := paperFixture(t)

	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	file := buildFileHeader(t, "midterm.pdf", pdfPayload)

	response, err := svc.Upload(context.Background(), actor, payload, file)
	require.NoError(t, err)
	require.Equal(t, models.PaperStatusPendingReview, response.Status)
	require.Equal(t, 1, response.Version)
	require.Equal(t, 1, storage.uploads)
	require.Len(t, papers.papers, 1)
}

func TestUploadIncrementsVersion(t *testing.T) {
	_, _, _, svc, actor := paperFixture(t)

	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}

	first, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "v1.pdf", pdfPayload))
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "v2.pdf", pdfPayload))
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
}

func TestUploadRejectsNonTeacher(t *testing.T) {
	_, _, storage, svc, actor := paperFixture(t)

	actor.Role = models.RoleHOD
	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "x.pdf", pdfPayload))
	require.ErrorIs(t, err, ErrRoleNotAllowed)
	require.Zero(t, storage.uploads)
}

func TestUploadRequiresFile(t *testing.T) {
	_, _, _, svc, actor := paperFixture(t)

	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, nil)
	require.ErrorIs(t, err, ErrPaperFileRequired)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	papers, _, storage, svc, actor := paperFixture(t)

	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "notes.txt", []byte("plain text, not a pdf")))
	require.ErrorIs(t, err, ErrPaperNotPDF)
	require.Zero(t, storage.uploads)
	require.Empty(t, papers.papers)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	papers, _, storage, svc, actor := paperFixture(t)

	big := make([]byte, 1024*1024+1)
	copy(big, pdfPayload)

	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "huge.pdf", big))
	require.ErrorIs(t, err, ErrPaperTooLarge)
	require.Zero(t, storage.uploads)
	require.Empty(t, papers.papers)
}

func TestUploadRejectsUnassignedSubject(t *testing.T) {
	_, subjects, storage, svc, actor := paperFixture(t)

	delete(subjects.assignments, [2]uint{11, 7})
	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "x.pdf", pdfPayload))
	require.ErrorIs(t, err, ErrSubjectNotAssigned)
	require.Zero(t, storage.uploads)
}

func TestUploadUnknownSubject(t *testing.T) {
	_, _, _, svc, actor := paperFixture(t)

	payload := dto.PaperUploadRequest{SubjectID: 404, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "x.pdf", pdfPayload))
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestUploadStorageFailureCreatesNoRow(t *testing.T) {
	papers, _, storage, svc, actor := paperFixture(t)

	storage.err = errors.New("blob store down")
	payload := dto.PaperUploadRequest{SubjectID: 7, ExamType: models.ExamTypeMidTerm, SetName: "Set A"}
	_, err := svc.Upload(context.Background(), actor, payload, buildFileHeader(t, "x.pdf", pdfPayload))
	require.Error(t, err)
	require.Empty(t, papers.papers)
}

func TestListMineExcludesRejected(t *testing.T) {
	papers, _, _, svc, actor := paperFixture(t)

	subject := models.Subject{ID: 7, Name: "Algorithms", DepartmentID: 3}
	require.NoError(t, papers.Create(context.Background(), &models.Paper{ID: 1, SubjectID: 7, ExamType: models.ExamTypeMidTerm, Status: models.PaperStatusPendingReview, UploadedBy: 11, Subject: subject}))
	require.NoError(t, papers.Create(context.Background(), &models.Paper{ID: 2, SubjectID: 7, ExamType: models.ExamTypeMidTerm, Status: models.PaperStatusRejected, UploadedBy: 11, Subject: subject}))
	require.NoError(t, papers.Create(context.Background(), &models.Paper{ID: 3, SubjectID: 7, ExamType: models.ExamTypeMidTerm, Status: models.PaperStatusApproved, UploadedBy: 12, Subject: subject}))

	mine, err := svc.ListMine(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, uint(1), mine[0].ID)
}
