package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]models.StudentDetail
	matricTaken bool
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var list []models.StudentDetail
	for _, s := range m.students {
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if s.UserID != nil && *s.UserID == userID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByMatricNo(ctx context.Context, matricNo string, excludeID string) (bool, error) {
	return m.matricTaken, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.StudentDetail)
	}
	if student.ID == "" {
		student.ID = "st-new"
	}
	m.students[student.ID] = models.StudentDetail{Student: *student}
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	detail := m.students[student.ID]
	detail.Student = *student
	m.students[student.ID] = detail
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func studentCreateRequest() CreateStudentRequest {
	return CreateStudentRequest{
		MatricNo:     "MED/20/010",
		FullName:     "Chidi Eze",
		Email:        "chidi@uni.edu",
		Gender:       "M",
		BirthDate:    time.Date(2000, 7, 1, 0, 0, 0, 0, time.UTC),
		FacultyID:    "f1",
		DepartmentID: "d1",
	}
}

func TestStudentCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, registrationDepartments(), nil, nil)

	detail, err := svc.Create(context.Background(), studentCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "MED/20/010", detail.MatricNo)
	assert.True(t, detail.Active)
}

func TestStudentCreateDuplicateMatric(t *testing.T) {
	repo := &mockStudentRepo{matricTaken: true}
	svc := NewStudentService(repo, registrationDepartments(), nil, nil)

	_, err := svc.Create(context.Background(), studentCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateUnknownDepartment(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, &mockDepartments{}, nil, nil)

	_, err := svc.Create(context.Background(), studentCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdatePartialFields(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.StudentDetail{
		"st1": {Student: models.Student{
			ID: "st1", MatricNo: "MED/20/001", FullName: "Ada Obi",
			FacultyID: "f1", DepartmentID: "d1", Active: true,
		}},
	}}
	svc := NewStudentService(repo, registrationDepartments(), nil, nil)

	phone := "08011112222"
	detail, err := svc.Update(context.Background(), "st1", UpdateStudentRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "08011112222", detail.Phone)
	assert.Equal(t, "Ada Obi", detail.FullName)
}

func TestStudentDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.StudentDetail{
		"st1": {Student: models.Student{ID: "st1", Active: true}},
	}}
	svc := NewStudentService(repo, registrationDepartments(), nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "st1"))
	assert.Equal(t, []string{"st1"}, repo.deactivated)

	err := svc.Deactivate(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
