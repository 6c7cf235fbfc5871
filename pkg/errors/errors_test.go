package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCodeAndMatchesTemplate(t *testing.T) {
	cloned := Clone(ErrNoSeatsAvailable, "course 6-01 is full")
	assert.Equal(t, "course 6-01 is full", cloned.Message)
	assert.True(t, errors.Is(cloned, ErrNoSeatsAvailable))
	assert.False(t, errors.Is(cloned, ErrDuplicateRequest))
	assert.Equal(t, "no seats available", ErrNoSeatsAvailable.Message)
}

func TestWithDetailsDoesNotMutateTemplate(t *testing.T) {
	err := WithDetails(ErrMissingDocuments, map[string]interface{}{"missing_documents": []string{"civil_registry"}})
	require.Len(t, err.Details, 1)
	assert.Nil(t, ErrMissingDocuments.Details)
	assert.True(t, HasCode(err, ErrMissingDocuments.Code))
}
