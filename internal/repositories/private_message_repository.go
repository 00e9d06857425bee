package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

const privateMessageColumns = `id, from_user_id, from_user_name, to_user_id, text, file_name, file_data, file_type, edited, deleted, created_at`

// PrivateMessageRepository stores two-party messages.
type PrivateMessageRepository interface {
	AppendPrivate(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error)
	GetPrivate(ctx context.Context, id int64) (models.PrivateMessage, error)
	Conversation(ctx context.Context, userA, userB string) ([]models.PrivateMessage, error)
	UpdatePrivateText(ctx context.Context, id int64, text string) (models.PrivateMessage, error)
	SoftDeletePrivate(ctx context.Context, id int64) (models.PrivateMessage, error)
}

// PrivateMessageRepo is a sqlx-backed repository.
type PrivateMessageRepo struct {
	db *sqlx.DB
}

// NewPrivateMessageRepo constructs PrivateMessageRepo.
func NewPrivateMessageRepo(db *sqlx.DB) *PrivateMessageRepo {
	return &PrivateMessageRepo{db: db}
}

// AppendPrivate stores a private message.
func (r *PrivateMessageRepo) AppendPrivate(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	var stored models.PrivateMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO private_messages (from_user_id, from_user_name, to_user_id, text, file_name, file_data, file_type)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+privateMessageColumns,
		msg.FromUserID, msg.FromUserName, msg.ToUserID, msg.Text, msg.FileName, msg.FileData, msg.FileType).
		StructScan(&stored)
	return stored, err
}

// GetPrivate retrieves a single message, deleted ones included.
func (r *PrivateMessageRepo) GetPrivate(ctx context.Context, id int64) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+privateMessageColumns+` FROM private_messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// Conversation returns every message exchanged between two users in
// chronological order. Deleted messages come back as tombstones.
func (r *PrivateMessageRepo) Conversation(ctx context.Context, userA, userB string) ([]models.PrivateMessage, error) {
	query := `SELECT ` + privateMessageColumns + `
        FROM private_messages
        WHERE (from_user_id=$1 AND to_user_id=$2)
        OR (from_user_id=$2 AND to_user_id=$1)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.PrivateMessage{}
	err := r.db.SelectContext(ctx, &msgs, query, userA, userB)
	return msgs, err
}

// UpdatePrivateText replaces the text of a live message and marks it edited.
func (r *PrivateMessageRepo) UpdatePrivateText(ctx context.Context, id int64, text string) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.QueryRowxContext(ctx, `UPDATE private_messages SET text=$2, edited=TRUE
        WHERE id=$1 AND deleted=FALSE
        RETURNING `+privateMessageColumns, id, text).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, r.missing(ctx, id)
	}
	return msg, err
}

// SoftDeletePrivate turns a live message into a tombstone.
func (r *PrivateMessageRepo) SoftDeletePrivate(ctx context.Context, id int64) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.QueryRowxContext(ctx, `UPDATE private_messages
        SET deleted=TRUE, text=$2, file_name='', file_data=NULL, file_type=''
        WHERE id=$1 AND deleted=FALSE
        RETURNING `+privateMessageColumns, id, models.TombstoneText).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, r.missing(ctx, id)
	}
	return msg, err
}

// missing tells an unknown id apart from an already deleted message after a
// conditional update matched nothing.
func (r *PrivateMessageRepo) missing(ctx context.Context, id int64) error {
	var deleted bool
	err := r.db.GetContext(ctx, &deleted, `SELECT deleted FROM private_messages WHERE id=$1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrMessageNotFound
	case err != nil:
		return err
	case deleted:
		return ErrMessageAlreadyDeleted
	default:
		return ErrMessageNotFound
	}
}
