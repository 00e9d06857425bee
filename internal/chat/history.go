package chat

import (
	"context"

	"chat-core/internal/hub"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

const maxHistoryLimit = 500

// History serves one-shot history fetches. It is not a subscription: live
// events flow through the router separately.
type History struct {
	public       repositories.PublicMessageRepository
	private      repositories.PrivateMessageRepository
	router       *hub.Router
	defaultLimit int
}

func NewHistory(public repositories.PublicMessageRepository, private repositories.PrivateMessageRepository, router *hub.Router, defaultLimit int) *History {
	return &History{public: public, private: private, router: router, defaultLimit: defaultLimit}
}

// PublicFeed returns up to limit feed entries, most recent first. A
// non-positive limit means the default window.
func (h *History) PublicFeed(ctx context.Context, limit int) ([]models.PublicMessage, error) {
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := h.public.RecentPublic(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return msgs, nil
}

// Conversation returns the messages between a and b in chronological order.
// Deleted messages are kept as tombstones.
func (h *History) Conversation(ctx context.Context, a, b string) ([]models.PrivateMessage, error) {
	msgs, err := h.private.Conversation(ctx, a, b)
	if err != nil {
		return nil, storeError(err)
	}
	for i, m := range msgs {
		if m.Deleted {
			msgs[i] = m.Tombstone()
		}
	}
	return msgs, nil
}

// ReplayPublic pushes the default feed window to one connection, oldest
// first, and returns how many entries were delivered.
func (h *History) ReplayPublic(ctx context.Context, handle string) (int, error) {
	msgs, err := h.PublicFeed(ctx, h.defaultLimit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if h.router.SendTo(handle, models.PublicMessageEvent(msgs[i])) {
			sent++
		}
	}
	return sent, nil
}
