package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/chaterrors"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

func textMessage() models.PrivateMessage {
	return models.PrivateMessage{ID: 10, FromUserID: "a", FromUserName: "alice", ToUserID: "b", Text: "hi", Timestamp: time.Unix(1700000000, 0)}
}

func TestEditPropagatesToBothParties(t *testing.T) {
	f := newFixture(t)
	sa := f.connect(t, "c1", alice)
	sb := f.connect(t, "c3", bob)
	msg := textMessage()
	edited := msg
	edited.Text = "hello"
	edited.Edited = true

	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(msg, nil)
	f.private.On("UpdatePrivateText", mock.Anything, int64(10), "hello").Return(edited, nil)

	got, err := f.svc.Dispatch(context.Background(), "c1", UpdateMessage{MessageID: 10, NewText: "hello"})
	require.NoError(t, err)
	assert.True(t, got.(models.PrivateMessage).Edited)

	assert.Equal(t, []string{models.EventMessageUpdated}, sa.Targets())
	assert.Equal(t, []string{models.EventMessageUpdated}, sb.Targets())
	assert.Equal(t, []string{"edit"}, f.audit.actions)
}

func TestEditRules(t *testing.T) {
	deleted := textMessage().Tombstone()
	attachment := textMessage()
	attachment.Text = ""
	attachment.FileName = "f.png"
	attachment.FileData = []byte{1}

	cases := []struct {
		name      string
		requester models.Principal
		stored    models.PrivateMessage
		getErr    error
		want      error
	}{
		{"unknown message", alice, models.PrivateMessage{}, repositories.ErrMessageNotFound, chaterrors.ErrNotFound},
		{"not the sender", bob, textMessage(), nil, chaterrors.ErrForbidden},
		{"admin is not the sender", admin, textMessage(), nil, chaterrors.ErrForbidden},
		{"deleted message", alice, deleted, nil, chaterrors.ErrInvalidState},
		{"attachment message", alice, attachment, nil, chaterrors.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.private.On("GetPrivate", mock.Anything, int64(10)).Return(tc.stored, tc.getErr)

			_, err := f.svc.UpdateMessage(context.Background(), tc.requester, 10, "new")

			assert.ErrorIs(t, err, tc.want)
			f.private.AssertNotCalled(t, "UpdatePrivateText", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.audit.actions)
		})
	}
}

func TestEditRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(textMessage(), nil)

	_, err := f.svc.UpdateMessage(context.Background(), alice, 10, "   ")
	assert.ErrorIs(t, err, chaterrors.ErrInvalidArgument)
}

func TestDeleteTombstonesAndPropagates(t *testing.T) {
	f := newFixture(t)
	sa := f.connect(t, "c1", alice)
	sb := f.connect(t, "c3", bob)
	msg := textMessage()
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(msg, nil)
	f.private.On("SoftDeletePrivate", mock.Anything, int64(10)).Return(msg.Tombstone(), nil)

	got, err := f.svc.DeleteMessage(context.Background(), alice, 10)
	require.NoError(t, err)

	assert.Equal(t, models.TombstoneText, got.Text)
	assert.Equal(t, "a", got.FromUserID)
	assert.Equal(t, "b", got.ToUserID)
	assert.Equal(t, msg.Timestamp, got.Timestamp)
	assert.Equal(t, []string{models.EventMessageDeleted}, sa.Targets())
	assert.Equal(t, []string{models.EventMessageDeleted}, sb.Targets())
}

func TestDeleteTwiceFailsConsistently(t *testing.T) {
	f := newFixture(t)
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(textMessage().Tombstone(), nil)

	for i := 0; i < 2; i++ {
		_, err := f.svc.DeleteMessage(context.Background(), alice, 10)
		assert.ErrorIs(t, err, chaterrors.ErrAlreadyDeleted)
		assert.ErrorIs(t, err, chaterrors.ErrInvalidState)
	}
	f.private.AssertNotCalled(t, "SoftDeletePrivate", mock.Anything, mock.Anything)
}

func TestDeleteRaceLosesAsAlreadyDeleted(t *testing.T) {
	f := newFixture(t)
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(textMessage(), nil)
	f.private.On("SoftDeletePrivate", mock.Anything, int64(10)).Return(nil, repositories.ErrMessageAlreadyDeleted)

	_, err := f.svc.DeleteMessage(context.Background(), alice, 10)
	assert.ErrorIs(t, err, chaterrors.ErrAlreadyDeleted)
}

func TestDeleteByNonOwner(t *testing.T) {
	f := newFixture(t)
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(textMessage(), nil)

	_, err := f.svc.DeleteMessage(context.Background(), bob, 10)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden)
}

func TestDeleteStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.private.On("GetPrivate", mock.Anything, int64(10)).Return(nil, errors.New("timeout"))

	_, err := f.svc.DeleteMessage(context.Background(), alice, 10)
	assert.ErrorIs(t, err, chaterrors.ErrStoreFailure)
	assert.False(t, chaterrors.IsCallerError(err))
}
