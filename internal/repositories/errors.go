package repositories

import "errors"

var (
	ErrMessageNotFound       = errors.New("message not found")
	ErrMessageAlreadyDeleted = errors.New("message already deleted")
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameTaken         = errors.New("username already taken")
)
