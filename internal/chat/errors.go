package chat

import (
	"errors"
	"fmt"

	"chat-core/internal/chaterrors"
	"chat-core/internal/repositories"
)

// storeError maps repository sentinels onto the core taxonomy; anything
// else is a store failure.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMessageNotFound):
		return fmt.Errorf("%w: message", chaterrors.ErrNotFound)
	case errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("%w: user", chaterrors.ErrNotFound)
	case errors.Is(err, repositories.ErrUsernameTaken):
		return fmt.Errorf("%w: %v", chaterrors.ErrInvalidState, err)
	case errors.Is(err, repositories.ErrMessageAlreadyDeleted):
		return chaterrors.ErrAlreadyDeleted
	default:
		return chaterrors.StoreFailure(err)
	}
}
