package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "matric_no", "full_name", "email", "gender", "birth_date", "phone",
		"faculty_id", "department_id", "active", "created_at", "updated_at",
		"faculty_name", "department_name",
	})
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().AddRow(
		"st1", "u1", "MED/20/001", "Ada Obi", "ada@uni.edu", "F", time.Now(), "08012345678",
		"f1", "d1", true, time.Now(), time.Now(),
		"Medicine", "Nursing",
	)
	mock.ExpectQuery("SELECT (.+) FROM students s").
		WithArgs("f1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{FacultyID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, students, 1)
	assert.Equal(t, "MED/20/001", students[0].MatricNo)
	assert.Equal(t, "Medicine", students[0].FacultyName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByUserID(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().AddRow(
		"st1", "u1", "MED/20/001", "Ada Obi", "ada@uni.edu", "F", time.Now(), "08012345678",
		"f1", "d1", true, time.Now(), time.Now(),
		"Medicine", "Nursing",
	)
	mock.ExpectQuery("SELECT (.+) FROM students s").
		WithArgs("u1").
		WillReturnRows(rows)

	detail, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "st1", detail.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByMatricNo(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM students").
		WithArgs("MED/20/001").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByMatricNo(context.Background(), "MED/20/001", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		MatricNo:     "MED/20/002",
		FullName:     "Bola Ade",
		Email:        "bola@uni.edu",
		Gender:       "M",
		BirthDate:    time.Date(2001, 5, 14, 0, 0, 0, 0, time.UTC),
		FacultyID:    "f1",
		DepartmentID: "d1",
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
