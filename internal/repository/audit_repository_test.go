package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/internal/models"
)

func TestAuditCreateCastsDetails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	userID := "admin-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admin_action_logs")).
		WithArgs(sqlmock.AnyArg(), "admin-1", "approve", "institution_request", "Colegio", `{"id":"ir-1"}`, "10.0.0.1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.AdminActionLog{
		UserID:     &userID,
		Action:     models.AuditActionApprove,
		ModelName:  "institution_request",
		ObjectRepr: "Colegio",
		Details:    json.RawMessage(`{"id":"ir-1"}`),
		IPAddress:  "10.0.0.1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
