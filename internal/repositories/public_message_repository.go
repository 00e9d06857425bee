package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

const publicMessageColumns = `id, sender, text, file_name, file_data, file_type, is_system, created_at`

// PublicMessageRepository stores the shared public feed.
type PublicMessageRepository interface {
	AppendPublic(ctx context.Context, msg models.PublicMessage) (models.PublicMessage, error)
	RecentPublic(ctx context.Context, limit int) ([]models.PublicMessage, error)
	PurgePublic(ctx context.Context) (int64, error)
}

// PublicMessageRepo is a sqlx implementation of PublicMessageRepository.
type PublicMessageRepo struct {
	db *sqlx.DB
}

// NewPublicMessageRepo constructs a PublicMessageRepo.
func NewPublicMessageRepo(db *sqlx.DB) *PublicMessageRepo {
	return &PublicMessageRepo{db: db}
}

// AppendPublic stores a feed entry and returns it with id and timestamp assigned.
func (r *PublicMessageRepo) AppendPublic(ctx context.Context, msg models.PublicMessage) (models.PublicMessage, error) {
	var stored models.PublicMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO public_messages (sender, text, file_name, file_data, file_type, is_system)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+publicMessageColumns,
		msg.Sender, msg.Text, msg.FileName, msg.FileData, msg.FileType, msg.IsSystem).
		StructScan(&stored)
	return stored, err
}

// RecentPublic returns up to limit entries, most recent first.
func (r *PublicMessageRepo) RecentPublic(ctx context.Context, limit int) ([]models.PublicMessage, error) {
	msgs := []models.PublicMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+publicMessageColumns+`
        FROM public_messages
        ORDER BY created_at DESC, id DESC
        LIMIT $1`, limit)
	return msgs, err
}

// PurgePublic deletes every feed entry and returns how many were removed.
func (r *PublicMessageRepo) PurgePublic(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM public_messages`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
