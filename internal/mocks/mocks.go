package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type PublicMessageRepositoryMock struct {
	mock.Mock
}

func (m *PublicMessageRepositoryMock) AppendPublic(ctx context.Context, msg models.PublicMessage) (models.PublicMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.PublicMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.PublicMessage)
	}
	return stored, args.Error(1)
}

func (m *PublicMessageRepositoryMock) RecentPublic(ctx context.Context, limit int) ([]models.PublicMessage, error) {
	args := m.Called(ctx, limit)
	var msgs []models.PublicMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.PublicMessage)
	}
	return msgs, args.Error(1)
}

func (m *PublicMessageRepositoryMock) PurgePublic(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type PrivateMessageRepositoryMock struct {
	mock.Mock
}

func (m *PrivateMessageRepositoryMock) AppendPrivate(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.PrivateMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.PrivateMessage)
	}
	return stored, args.Error(1)
}

func (m *PrivateMessageRepositoryMock) GetPrivate(ctx context.Context, id int64) (models.PrivateMessage, error) {
	args := m.Called(ctx, id)
	var msg models.PrivateMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PrivateMessage)
	}
	return msg, args.Error(1)
}

func (m *PrivateMessageRepositoryMock) Conversation(ctx context.Context, userA, userB string) ([]models.PrivateMessage, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.PrivateMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.PrivateMessage)
	}
	return msgs, args.Error(1)
}

func (m *PrivateMessageRepositoryMock) UpdatePrivateText(ctx context.Context, id int64, text string) (models.PrivateMessage, error) {
	args := m.Called(ctx, id, text)
	var msg models.PrivateMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PrivateMessage)
	}
	return msg, args.Error(1)
}

func (m *PrivateMessageRepositoryMock) SoftDeletePrivate(ctx context.Context, id int64) (models.PrivateMessage, error) {
	args := m.Called(ctx, id)
	var msg models.PrivateMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PrivateMessage)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) EnsureUser(ctx context.Context, identity models.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, id string) (models.Identity, error) {
	args := m.Called(ctx, id)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

func (m *UserRepositoryMock) ListUsersExcept(ctx context.Context, id string) ([]models.Identity, error) {
	args := m.Called(ctx, id)
	var users []models.Identity
	if val := args.Get(0); val != nil {
		users = val.([]models.Identity)
	}
	return users, args.Error(1)
}

var _ repositories.PublicMessageRepository = (*PublicMessageRepositoryMock)(nil)
var _ repositories.PrivateMessageRepository = (*PrivateMessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
