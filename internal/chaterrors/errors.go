// Package chaterrors holds the error taxonomy shared by the chat core and its
// transports.
package chaterrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrTransferOverflow = errors.New("transfer overflow")
	ErrNoActiveTransfer = errors.New("no active transfer")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreFailure     = errors.New("store failure")

	// ErrAlreadyDeleted is returned for every delete of a tombstoned message.
	ErrAlreadyDeleted = fmt.Errorf("%w: message already deleted", ErrInvalidState)
)

// StoreFailure wraps a collaborator I/O error. Nil stays nil.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// IsCallerError reports whether err is the caller's fault and may be shown to
// the originating connection verbatim.
func IsCallerError(err error) bool {
	for _, target := range []error{
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrInvalidState,
		ErrTransferOverflow,
		ErrNoActiveTransfer,
		ErrInvalidArgument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PublicMessage returns the text reported back to the caller.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsCallerError(err) {
		return err.Error()
	}
	return "internal error"
}

// HTTPStatus maps err onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrTransferOverflow):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoActiveTransfer), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
