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

func newResultMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestResultRepositoryCountByStudent(t *testing.T) {
	db, mock, cleanup := newResultMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("st1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountByStudent(context.Background(), "st1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newResultMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("INSERT INTO result_notifications").
		WillReturnResult(sqlmock.NewResult(1, 1))

	result := &models.ResultNotification{StudentID: "st1", ResultReady: true, Notified: false}
	require.NoError(t, repo.Insert(context.Background(), result))
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryFindByStudent(t *testing.T) {
	db, mock, cleanup := newResultMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "appointment_id", "result_ready", "notified", "blood_group", "genotype", "height_cm", "weight_kg", "remarks", "created_at", "updated_at", "notified_at"}).
		AddRow("r1", "st1", nil, true, false, nil, nil, nil, nil, nil, time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT (.+) FROM result_notifications").
		WithArgs("st1").
		WillReturnRows(rows)

	result, err := repo.FindByStudent(context.Background(), "st1")
	require.NoError(t, err)
	assert.True(t, result.ResultReady)
	assert.False(t, result.Notified)
	assert.NoError(t, mock.ExpectationsWereMet())
}
