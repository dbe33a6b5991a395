package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fieldErr map[string]string

func (f fieldErr) Error() string                    { return "invalid fields" }
func (f fieldErr) FieldMessages() map[string]string { return f }

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("saving: %w", New(NotFound, "Bed not found."))

	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, NotFound, CodeOf(wrapped))
	assert.Equal(t, InvalidArgument, CodeOf(fmt.Errorf("submit: %w", fieldErr{"location": "required"})))
	assert.Equal(t, Internal, CodeOf(errors.New("boom")))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(nil, Internal))
}

func TestMessageOf_HidesCause(t *testing.T) {
	err := Wrap(Unavailable, "Please retry.", errors.New("dial tcp 10.0.0.1:5432: refused"))

	assert.Equal(t, "Please retry.", MessageOf(err))
	assert.Equal(t, "An internal error occurred.", MessageOf(errors.New("raw")))
	assert.ErrorContains(t, err, "refused")
}

func TestStatusRoundTrip(t *testing.T) {
	for _, code := range []Code{
		Unauthenticated, PermissionDenied, InvalidArgument, AlreadyExists,
		NotFound, FailedPrecondition, Unavailable, Internal,
	} {
		assert.Equal(t, code, FromStatus(HTTPStatus(code)), code)
	}
	assert.Equal(t, Unavailable, FromStatus(http.StatusTooManyRequests))
	assert.Equal(t, Internal, FromStatus(http.StatusTeapot))
}

func TestResponse(t *testing.T) {
	status, body := Response(New(FailedPrecondition, "The bed changed."))
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Equal(t, BodyError{Code: FailedPrecondition, Message: "The bed changed."}, body.Error)

	status, body = Response(fieldErr{"location": "Location is required."})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, InvalidArgument, body.Error.Code)
	assert.Equal(t, map[string]string{"location": "Location is required."}, body.Error.Fields)

	status, body = Response(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, Internal, body.Error.Code)
}
