package chaterrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlreadyDeletedIsInvalidState(t *testing.T) {
	require.ErrorIs(t, ErrAlreadyDeleted, ErrInvalidState)
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyDeleted))
}

func TestStoreFailureWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := StoreFailure(cause)

	require.ErrorIs(t, err, ErrStoreFailure)
	require.ErrorIs(t, err, cause)
	assert.Same(t, err, StoreFailure(err))
	assert.NoError(t, StoreFailure(nil))
}

func TestPublicMessageHidesStoreErrors(t *testing.T) {
	assert.Equal(t, "internal error", PublicMessage(StoreFailure(errors.New("pq: timeout"))))
	assert.Equal(t, "forbidden: not the sender", PublicMessage(fmt.Errorf("%w: not the sender", ErrForbidden)))
	assert.Equal(t, "", PublicMessage(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrUnauthenticated:          http.StatusUnauthorized,
		ErrForbidden:                http.StatusForbidden,
		ErrNotFound:                 http.StatusNotFound,
		ErrInvalidArgument:          http.StatusBadRequest,
		ErrTransferOverflow:         http.StatusRequestEntityTooLarge,
		errors.New("anything else"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
