package chat

import (
	"context"
	"fmt"
	"strings"

	"chat-core/internal/chaterrors"
	"chat-core/internal/hub"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

// MutationAuthorizer guards edits and deletes of private messages. A
// message may be edited any number of times while it is a live text
// message; deletion is terminal.
type MutationAuthorizer struct {
	messages      repositories.PrivateMessageRepository
	router        *hub.Router
	maxTextLength int
}

func NewMutationAuthorizer(messages repositories.PrivateMessageRepository, router *hub.Router, maxTextLength int) *MutationAuthorizer {
	return &MutationAuthorizer{messages: messages, router: router, maxTextLength: maxTextLength}
}

// Edit replaces the text of requester's own message and pushes
// MessageUpdated to both parties.
func (m *MutationAuthorizer) Edit(ctx context.Context, requester models.Principal, id int64, newText string) (models.PrivateMessage, error) {
	msg, err := m.owned(ctx, requester, id)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	if msg.Deleted {
		return models.PrivateMessage{}, fmt.Errorf("%w: message %d is deleted", chaterrors.ErrInvalidState, id)
	}
	if msg.HasFile() {
		return models.PrivateMessage{}, fmt.Errorf("%w: attachment messages cannot be edited", chaterrors.ErrInvalidState)
	}
	text, err := cleanText(newText, m.maxTextLength)
	if err != nil {
		return models.PrivateMessage{}, err
	}

	updated, err := m.messages.UpdatePrivateText(ctx, id, text)
	if err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	m.router.DeliverPrivate(ctx, updated.FromUserID, updated.ToUserID, models.PrivateEvent(models.EventMessageUpdated, updated))
	return updated, nil
}

// Delete tombstones requester's own message and pushes MessageDeleted to
// both parties. Deleting a tombstone fails with ErrAlreadyDeleted.
func (m *MutationAuthorizer) Delete(ctx context.Context, requester models.Principal, id int64) (models.PrivateMessage, error) {
	msg, err := m.owned(ctx, requester, id)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	if msg.Deleted {
		return models.PrivateMessage{}, chaterrors.ErrAlreadyDeleted
	}

	deleted, err := m.messages.SoftDeletePrivate(ctx, id)
	if err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	deleted = deleted.Tombstone()
	m.router.DeliverPrivate(ctx, deleted.FromUserID, deleted.ToUserID, models.PrivateEvent(models.EventMessageDeleted, deleted))
	return deleted, nil
}

func (m *MutationAuthorizer) owned(ctx context.Context, requester models.Principal, id int64) (models.PrivateMessage, error) {
	if requester.ID == "" {
		return models.PrivateMessage{}, chaterrors.ErrUnauthenticated
	}
	msg, err := m.messages.GetPrivate(ctx, id)
	if err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	if msg.FromUserID != requester.ID {
		return models.PrivateMessage{}, fmt.Errorf("%w: only the sender may change message %d", chaterrors.ErrForbidden, id)
	}
	return msg, nil
}

// cleanText trims text and enforces it is non-empty and within max runes.
func cleanText(text string, max int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", chaterrors.ErrInvalidArgument)
	}
	if max > 0 && len([]rune(text)) > max {
		return "", fmt.Errorf("%w: text longer than %d characters", chaterrors.ErrInvalidArgument, max)
	}
	return text, nil
}
