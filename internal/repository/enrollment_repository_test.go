package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/internal/models"
)

func TestEnrollmentRepositoryFindCurrentByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "institution_id", "course_id", "requested_grade", "status", "observation", "registered_at"}).
		AddRow("enr-1", "stu-1", "inst-1", "course-1", 3, "active", "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND status = $2 ORDER BY registered_at DESC LIMIT 1")).
		WithArgs("stu-1", "active").
		WillReturnRows(rows)

	enrollment, err := repo.FindCurrentByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", enrollment.InstitutionID)
	require.NotNil(t, enrollment.CourseID)
	assert.Equal(t, "course-1", *enrollment.CourseID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindCurrentByStudentNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("FROM enrollments WHERE student_id").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrentByStudent(context.Background(), "stu-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
