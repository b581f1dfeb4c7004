package errs

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeUpperCaseWithUnderscores(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST", MakeUpperCaseWithUnderscores("Bad Request"))
	assert.Equal(t, "TOO_MANY_REQUESTS", MakeUpperCaseWithUnderscores(http.StatusText(http.StatusTooManyRequests)))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *HTTPError
		status int
		code   string
	}{
		{"unauthorized", NewUnauthorizedError("no", false), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", NewForbiddenError("no", false), http.StatusForbidden, "FORBIDDEN"},
		{"bad request", NewBadRequestError("no", false, nil, nil, nil), http.StatusBadRequest, "BAD_REQUEST"},
		{"bad request custom code", NewBadRequestError("no", true, Code("COUPON_EXPIRED"), nil, nil), http.StatusBadRequest, "COUPON_EXPIRED"},
		{"not found", NewNotFoundError("no", false, nil), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", NewConflictError("no", false, Code("COUPON_EXHAUSTED")), http.StatusConflict, "COUPON_EXHAUSTED"},
		{"unprocessable", NewUnprocessableError("no", false, nil), http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY"},
		{"too many", NewTooManyRequestsError("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"internal", NewInternalServerError(), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("enroll: %w", NewConflictError("already enrolled", true, nil))

	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.Equal(t, "CONFLICT", CodeOf(err))
	assert.Equal(t, 0, StatusOf(fmt.Errorf("plain")))
	assert.ErrorIs(t, err, &HTTPError{})
}

func TestWithMessageCopies(t *testing.T) {
	base := NewNotFoundError("Course not found", true, nil)
	other := base.WithMessage("Category not found")

	assert.Equal(t, "Course not found", base.Message)
	assert.Equal(t, "Category not found", other.Message)
	assert.Equal(t, base.Status, other.Status)
}
