package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
)

func newAppointmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "status", "time_range", "completed_at", "created_at", "updated_at", "student_name", "matric_no", "student_email"}).
		AddRow("a1", "st1", "scheduled", []byte(`["2025-01-10 10:00:00+00","2025-01-10 10:15:00+00")`), nil, time.Now(), time.Now(), "Jane Doe", "U2019/1234", "jane@example.edu")
	mock.ExpectQuery("SELECT (.+) FROM appointments a").
		WithArgs("a1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, detail.Status)
	require.NotNil(t, detail.TimeRange)
	assert.Equal(t, 10, detail.TimeRange.Start.UTC().Hour())
	assert.Equal(t, "Jane Doe", detail.StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindByIDNullRange(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "status", "time_range", "completed_at", "created_at", "updated_at", "student_name", "matric_no", "student_email"}).
		AddRow("a1", "st1", "pending", nil, nil, time.Now(), time.Now(), "Jane Doe", "U2019/1234", "jane@example.edu")
	mock.ExpectQuery("SELECT (.+) FROM appointments a").
		WithArgs("a1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Nil(t, detail.TimeRange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateLifecycleOverlap(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("a1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})

	appointment := &models.Appointment{
		ID:        "a1",
		StudentID: "st1",
		Status:    models.AppointmentScheduled,
		TimeRange: &models.TimeRange{Start: time.Now(), End: time.Now().Add(15 * time.Minute)},
	}
	err := repo.UpdateLifecycle(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrRangeOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateLifecycle(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("a1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	appointment := &models.Appointment{ID: "a1", StudentID: "st1", Status: models.AppointmentPending}
	require.NoError(t, repo.UpdateLifecycle(context.Background(), appointment))
	assert.False(t, appointment.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), "st1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appointment := &models.Appointment{StudentID: "st1", Status: models.AppointmentPending}
	require.NoError(t, repo.Create(context.Background(), appointment))
	assert.NotEmpty(t, appointment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDeletePending(t *testing.T) {
	db, mock, cleanup := newAppointmentMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1 AND status = $2")).
		WithArgs("a1", models.AppointmentPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeletePending(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
