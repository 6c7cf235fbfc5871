package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseProvisionCountsSkippedLabels(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO courses .* ON CONFLICT").
		WithArgs(sqlmock.AnyArg(), "inst-1", "1-01", 30, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO courses .* ON CONFLICT").
		WithArgs(sqlmock.AnyArg(), "inst-1", "1-02", 30, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO courses .* ON CONFLICT").
		WithArgs(sqlmock.AnyArg(), "inst-1", "1-03", 30, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Provision(context.Background(), "inst-1", []string{"1-01", "1-02", "1-03"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseProvisionRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO courses").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.Provision(context.Background(), "inst-1", []string{"1-01"}, 30)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDeleteByInstitution(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("DELETE FROM courses WHERE institution_id").
		WithArgs("inst-1").
		WillReturnResult(sqlmock.NewResult(0, 33))

	n, err := repo.DeleteByInstitution(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 33, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
