package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/chaterrors"
	"chat-core/internal/hub"
	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type fixture struct {
	hub     *hub.Hub
	public  *mocks.PublicMessageRepositoryMock
	private *mocks.PrivateMessageRepositoryMock
	users   *mocks.UserRepositoryMock
	audit   *auditRecorder
	svc     *Service
}

type auditRecorder struct {
	actions []string
}

func (a *auditRecorder) Emit(_ context.Context, _, action, _, _ string, _ *string) {
	a.actions = append(a.actions, action)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		hub:     hub.NewHub(log, 1<<20),
		public:  &mocks.PublicMessageRepositoryMock{},
		private: &mocks.PrivateMessageRepositoryMock{},
		users:   &mocks.UserRepositoryMock{},
		audit:   &auditRecorder{},
	}
	f.svc = NewService(f.hub, f.public, f.private, f.users, f.audit, log, Options{
		HistoryLimit:  50,
		MaxTextLength: 100,
		MaxFileSize:   1 << 20,
	})
	return f
}

var (
	alice = models.Principal{Identity: models.Identity{ID: "a", Username: "alice"}}
	bob   = models.Principal{Identity: models.Identity{ID: "b", Username: "bob"}}
	admin = models.Principal{Identity: models.Identity{ID: "z", Username: "root"}, Roles: []string{models.RoleAdmin}}
)

// connect registers a connection directly on the hub, skipping replay.
func (f *fixture) connect(t *testing.T, handle string, p models.Principal) *mocks.RecordingSender {
	t.Helper()
	sender := &mocks.RecordingSender{}
	require.NoError(t, f.hub.Connect(hub.Connection{Handle: handle, Principal: p, Sender: sender}))
	return sender
}

func TestConnectReplaysFeedOldestFirst(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.users.On("EnsureUser", mock.Anything, alice.Identity).Return(nil)
	f.public.On("RecentPublic", mock.Anything, 50).Return([]models.PublicMessage{
		{ID: 2, Sender: "bob", Text: "second", Timestamp: now},
		{ID: 1, Sender: "bob", Text: "first", Timestamp: now.Add(-time.Minute)},
	}, nil)

	sender := &mocks.RecordingSender{}
	err := f.svc.Connect(context.Background(), hub.Connection{Handle: "c1", Principal: alice, Sender: sender})
	require.NoError(t, err)

	events := sender.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Arguments[1])
	assert.Equal(t, "second", events[1].Arguments[1])
}

func TestConnectFailsWhenDirectoryIsDown(t *testing.T) {
	f := newFixture(t)
	f.users.On("EnsureUser", mock.Anything, alice.Identity).Return(errors.New("db down"))

	err := f.svc.Connect(context.Background(), hub.Connection{Handle: "c1", Principal: alice, Sender: &mocks.RecordingSender{}})

	assert.ErrorIs(t, err, chaterrors.ErrStoreFailure)
	assert.Zero(t, f.hub.Registry().Count())
}

func TestConnectRejectsTakenUsername(t *testing.T) {
	f := newFixture(t)
	f.users.On("EnsureUser", mock.Anything, alice.Identity).
		Return(fmt.Errorf("%w: alice", repositories.ErrUsernameTaken))

	err := f.svc.Connect(context.Background(), hub.Connection{Handle: "c1", Principal: alice, Sender: &mocks.RecordingSender{}})

	assert.ErrorIs(t, err, chaterrors.ErrInvalidState)
	assert.True(t, chaterrors.IsCallerError(err))
	assert.Contains(t, chaterrors.PublicMessage(err), "username already taken")
	assert.Zero(t, f.hub.Registry().Count())
}

func TestSendMessagePersistsThenBroadcasts(t *testing.T) {
	f := newFixture(t)
	s1 := f.connect(t, "c1", alice)
	s2 := f.connect(t, "c2", bob)
	f.public.On("AppendPublic", mock.Anything, models.PublicMessage{Sender: "alice", Text: "hello"}).
		Return(models.PublicMessage{ID: 7, Sender: "alice", Text: "hello", Timestamp: time.Now()}, nil).Once()

	_, err := f.svc.Dispatch(context.Background(), "c1", SendMessage{Text: "  hello "})
	require.NoError(t, err)

	assert.Equal(t, []string{models.EventReceiveMessage}, s1.Targets())
	assert.Equal(t, []string{models.EventReceiveMessage}, s2.Targets())
	f.public.AssertExpectations(t)
}

func TestSendMessageStoreFailureIsNotDelivered(t *testing.T) {
	f := newFixture(t)
	s1 := f.connect(t, "c1", alice)
	f.public.On("AppendPublic", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := f.svc.Dispatch(context.Background(), "c1", SendMessage{Text: "hello"})

	assert.ErrorIs(t, err, chaterrors.ErrStoreFailure)
	assert.Equal(t, "internal error", chaterrors.PublicMessage(err))
	assert.Empty(t, s1.Events())
}

func TestDispatchFromDeadHandle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Dispatch(context.Background(), "ghost", SendMessage{Text: "hi"})
	assert.ErrorIs(t, err, chaterrors.ErrUnauthenticated)
}

func TestAdminOnlyMethods(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	sa := f.connect(t, "c9", admin)

	_, err := f.svc.Dispatch(context.Background(), "c1", PurgeAllMessages{})
	assert.ErrorIs(t, err, chaterrors.ErrForbidden)
	_, err = f.svc.Dispatch(context.Background(), "c1", SendAdminMessage{Text: "x"})
	assert.ErrorIs(t, err, chaterrors.ErrForbidden)

	f.public.On("PurgePublic", mock.Anything).Return(int64(3), nil)
	f.public.On("AppendPublic", mock.Anything, models.PublicMessage{Sender: "[ADMIN] root", Text: "maintenance", IsSystem: true}).
		Return(models.PublicMessage{ID: 1, Sender: "[ADMIN] root", Text: "maintenance", IsSystem: true}, nil)

	_, err = f.svc.Dispatch(context.Background(), "c9", PurgeAllMessages{})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(context.Background(), "c9", SendAdminMessage{Text: "maintenance"})
	require.NoError(t, err)

	assert.Equal(t, []string{models.EventMessagesPurged, models.EventReceiveMessage}, sa.Targets())
	assert.Equal(t, []string{"purge", "admin_message"}, f.audit.actions)
}

func TestGroupJoinAndLeaveNotifyMembers(t *testing.T) {
	f := newFixture(t)
	s1 := f.connect(t, "c1", alice)
	s2 := f.connect(t, "c2", bob)

	_, err := f.svc.Dispatch(context.Background(), "c1", JoinGroup{GroupName: "g1"})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(context.Background(), "c2", JoinGroup{GroupName: "g1"})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(context.Background(), "c2", LeaveGroup{GroupName: "g1"})
	require.NoError(t, err)

	events := s1.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "alice has joined the group g1", events[0].Arguments[0])
	assert.Equal(t, "bob has joined the group g1", events[1].Arguments[0])
	assert.Equal(t, "bob has left the group g1", events[2].Arguments[0])
	assert.Len(t, s2.Events(), 1)
}

func TestChunkedUploadBroadcastsFileMessage(t *testing.T) {
	f := newFixture(t)
	s1 := f.connect(t, "c1", alice)
	s2 := f.connect(t, "c2", bob)
	data := []byte("0123456789")

	f.public.On("AppendPublic", mock.Anything, models.PublicMessage{Sender: "alice", FileName: "f.txt", FileData: data, FileType: "text/plain"}).
		Return(models.PublicMessage{ID: 3, Sender: "alice", FileName: "f.txt", FileData: data, FileType: "text/plain"}, nil)

	ctx := context.Background()
	_, err := f.svc.Dispatch(ctx, "c1", StartFileTransfer{FileName: "f.txt", FileSize: 10, ContentType: "text/plain"})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(ctx, "c1", SendFileChunk{Chunk: data[:6]})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(ctx, "c1", SendFileChunk{Chunk: data[6:]})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(ctx, "c1", SendFileChunk{Chunk: []byte("x")})
	assert.ErrorIs(t, err, chaterrors.ErrTransferOverflow)
	_, err = f.svc.Dispatch(ctx, "c1", CompleteFileTransfer{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		models.EventFileTransferStarted,
		models.EventFileTransferProgress,
		models.EventFileTransferProgress,
		models.EventReceiveFileMessage,
	}, s1.Targets())
	assert.Equal(t, []string{models.EventReceiveFileMessage}, s2.Targets())
	assert.InDelta(t, 60.0, s1.Events()[1].Arguments[0], 1e-9)
}

func TestCompleteWithoutTransfer(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	_, err := f.svc.Dispatch(context.Background(), "c1", CompleteFileTransfer{})
	assert.ErrorIs(t, err, chaterrors.ErrNoActiveTransfer)
}

func TestPrivateMessageReachesAllDevices(t *testing.T) {
	f := newFixture(t)
	c1 := f.connect(t, "c1", alice)
	c2 := f.connect(t, "c2", alice)
	c3 := f.connect(t, "c3", bob)
	other := f.connect(t, "c4", admin)

	f.users.On("GetUser", mock.Anything, "b").Return(bob.Identity, nil)
	f.private.On("AppendPrivate", mock.Anything, models.PrivateMessage{FromUserID: "a", FromUserName: "alice", ToUserID: "b", Text: "hi"}).
		Return(models.PrivateMessage{ID: 5, FromUserID: "a", FromUserName: "alice", ToUserID: "b", Text: "hi"}, nil)

	res, err := f.svc.Dispatch(context.Background(), "c1", SendPrivateMessage{ToUserID: "b", Text: "hi"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.(models.PrivateMessage).ID)

	for _, s := range []*mocks.RecordingSender{c1, c2, c3} {
		assert.Equal(t, []string{models.EventReceivePrivateMessage}, s.Targets())
	}
	assert.Empty(t, other.Events())
}

func TestPrivateMessageToUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	f.users.On("GetUser", mock.Anything, "nobody").Return(nil, repositories.ErrUserNotFound)

	_, err := f.svc.Dispatch(context.Background(), "c1", SendPrivateMessage{ToUserID: "nobody", Text: "hi"})
	assert.ErrorIs(t, err, chaterrors.ErrNotFound)
	f.private.AssertNotCalled(t, "AppendPrivate", mock.Anything, mock.Anything)
}

func TestPrivateFileEchoesToOwnDevices(t *testing.T) {
	f := newFixture(t)
	c1 := f.connect(t, "c1", alice)
	c2 := f.connect(t, "c2", alice)
	c3 := f.connect(t, "c3", bob)
	data := []byte("%PDF-1.4 minimal")

	f.users.On("GetUser", mock.Anything, "b").Return(bob.Identity, nil)
	f.private.On("AppendPrivate", mock.Anything, mock.MatchedBy(func(m models.PrivateMessage) bool {
		return m.FileName == "doc.pdf" && m.FileType == "application/pdf"
	})).Return(models.PrivateMessage{ID: 8, FromUserID: "a", ToUserID: "b", FileName: "doc.pdf", FileData: data, FileType: "application/pdf"}, nil)

	_, err := f.svc.Dispatch(context.Background(), "c1", SendPrivateFile{ToUserID: "b", FileName: "doc.pdf", FileData: data})
	require.NoError(t, err)

	assert.Equal(t, []string{models.EventReceiveOwnFile}, c1.Targets())
	assert.Equal(t, []string{models.EventReceiveOwnFile}, c2.Targets())
	assert.Equal(t, []string{models.EventReceivePrivateFile}, c3.Targets())
}

func TestAvailableUsersFlagsOnline(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	f.connect(t, "c3", bob)
	f.users.On("ListUsersExcept", mock.Anything, "a").Return([]models.Identity{bob.Identity, {ID: "d", Username: "dave"}}, nil)

	res, err := f.svc.Dispatch(context.Background(), "c1", GetAvailableUsers{})
	require.NoError(t, err)

	assert.Equal(t, []UserSummary{
		{ID: "b", Username: "bob", Online: true},
		{ID: "d", Username: "dave", Online: false},
	}, res)
}

func TestConversationTombstonesDeleted(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	ts := time.Now()
	f.users.On("GetUser", mock.Anything, "b").Return(bob.Identity, nil)
	f.private.On("Conversation", mock.Anything, "a", "b").Return([]models.PrivateMessage{
		{ID: 1, FromUserID: "a", ToUserID: "b", Text: "one", Timestamp: ts},
		{ID: 2, FromUserID: "b", ToUserID: "a", FileName: "x", FileData: []byte{1}, Deleted: true, Timestamp: ts},
	}, nil)

	res, err := f.svc.Dispatch(context.Background(), "c1", GetConversation{OtherUserID: "b"})
	require.NoError(t, err)

	msgs := res.([]models.PrivateMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.TombstoneText, msgs[1].Text)
	assert.Empty(t, msgs[1].FileName)
	assert.Nil(t, msgs[1].FileData)
	assert.Equal(t, "b", msgs[1].FromUserID)
	assert.Equal(t, ts, msgs[1].Timestamp)
}

func TestConversationWithUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", alice)
	f.users.On("GetUser", mock.Anything, "x").Return(nil, repositories.ErrUserNotFound)

	_, err := f.svc.Dispatch(context.Background(), "c1", GetConversation{OtherUserID: "x"})
	assert.ErrorIs(t, err, chaterrors.ErrNotFound)
}

func TestPublicFeedClampsLimit(t *testing.T) {
	f := newFixture(t)
	f.public.On("RecentPublic", mock.Anything, 50).Return([]models.PublicMessage{}, nil).Once()
	f.public.On("RecentPublic", mock.Anything, maxHistoryLimit).Return([]models.PublicMessage{}, nil).Once()

	_, err := f.svc.PublicFeed(context.Background(), 0)
	require.NoError(t, err)
	_, err = f.svc.PublicFeed(context.Background(), 10000)
	require.NoError(t, err)
	f.public.AssertExpectations(t)
}
