package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/internal/models"
)

var institutionRequestRowColumns = []string{"id", "name", "type", "dane_code", "department", "municipality", "address", "phone", "email",
	"admin_id", "institution_id", "submitted_by", "status", "reviewed_by", "reviewer_comments", "created_at", "updated_at"}

func institutionRequestRow(status string, institutionID interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(institutionRequestRowColumns).
		AddRow("ir-1", "Colegio Central", "public", "111", "Antioquia", "Medellin", "Calle 1", "", "info@central.edu",
			"staff-1", institutionID, "user-1", status, nil, "", now, now)
}

func TestInstitutionRequestApproveMaterializesInstitution(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInstitutionRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM institution_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("ir-1").
		WillReturnRows(institutionRequestRow("pending", nil))
	mock.ExpectExec("INSERT INTO institutions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE institution_requests SET status = $2, institution_id = $3")).
		WithArgs("ir-1", "approved", sqlmock.AnyArg(), "ok", "admin-1", sqlmock.AnyArg()).
		WillReturnRows(institutionRequestRow("approved", "inst-9"))
	mock.ExpectCommit()

	req, inst, err := repo.Approve(context.Background(), "ir-1", "ok", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, req.Status)
	assert.Equal(t, "Colegio Central", inst.Name)
	assert.Equal(t, "staff-1", inst.AdminID)
	assert.NotEmpty(t, inst.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRequestReviewNotPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInstitutionRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WillReturnRows(sqlmock.NewRows(institutionRequestRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM institution_requests WHERE id = $1")).
		WillReturnRows(institutionRequestRow("rejected", nil))

	_, err := repo.Review(context.Background(), "ir-1", models.ApprovalRejected, "no", "admin-1")
	assert.ErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}
