package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]struct {
		status    int
		retryable bool
		details   bool
	}{
		CodeValidation:   {status: http.StatusBadRequest, details: true},
		CodeUnauthorized: {status: http.StatusUnauthorized},
		CodeForbidden:    {status: http.StatusForbidden},
		CodeNotFound:     {status: http.StatusNotFound},
		CodeConflict:     {status: http.StatusConflict},
		CodeNotEligible:  {status: http.StatusUnprocessableEntity, details: true},
		CodeInternal:     {status: http.StatusInternalServerError, retryable: true},
		CodeDependency:   {status: http.StatusServiceUnavailable, retryable: true, details: true},
	}
	for code, want := range cases {
		meta := MetadataFor(code)
		assert.Equal(t, want.status, meta.HTTPStatus, code)
		assert.Equal(t, want.retryable, meta.Retryable, code)
		assert.Equal(t, want.details, meta.DetailsAllowed, code)
		assert.NotEmpty(t, meta.PublicMessage, code)
	}

	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestWrapKeepsCauseAndDetails(t *testing.T) {
	cause := stdErrors.New("row locked")
	err := Wrap(CodeConflict, cause, "reservation changed").WithDetails(map[string]any{"reservation_id": "r-1"})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConflict, err.Code())
	assert.Equal(t, "reservation changed", err.Message())
	assert.Equal(t, "CONFLICT: reservation changed", err.Error())
	assert.Equal(t, map[string]any{"reservation_id": "r-1"}, err.Details())

	assert.Nil(t, Wrap(CodeInternal, nil, "no cause").Unwrap())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.WithDetails("x"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))

	wrapped := fmt.Errorf("issue voucher: %w", New(CodeNotEligible, "payment is not settled"))
	assert.Equal(t, CodeNotEligible, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeValidation, CodeNotEligible))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(nil, CodeInternal))

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "payment is not settled", got.Message())
	assert.Nil(t, As(nil))
}
