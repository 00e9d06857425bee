package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/models"
)

func TestListMessagesDefaultLimit(t *testing.T) {
	f := newFixture()
	router := setupRouter(f, &alice)

	now := time.Now().UTC()
	f.public.On("RecentPublic", mock.Anything, 50).Return([]models.PublicMessage{
		{ID: 2, Sender: "Bob", Text: "second", Timestamp: now},
		{ID: 1, Sender: "Alice", Text: "first", Timestamp: now.Add(-time.Minute)},
	}, nil).Once()

	rec := serve(router, http.MethodGet, "/messages", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "second")
	f.public.AssertExpectations(t)
}

func TestListMessagesRejectsBadLimit(t *testing.T) {
	f := newFixture()
	router := setupRouter(f, &alice)

	rec := serve(router, http.MethodGet, "/messages?limit=ten", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.public.AssertNotCalled(t, "RecentPublic", mock.Anything, mock.Anything)
}

func TestPostMessageBroadcasts(t *testing.T) {
	f := newFixture()
	b1 := f.connect(t, "b1", bob)
	router := setupRouter(f, &alice)

	f.public.On("AppendPublic", mock.Anything, mock.MatchedBy(func(m models.PublicMessage) bool {
		return m.Sender == "Alice" && m.Text == "hi all"
	})).Return(models.PublicMessage{ID: 1, Sender: "Alice", Text: "hi all", Timestamp: time.Now()}, nil).Once()

	rec := serve(router, http.MethodPost, "/messages", gin.H{"text": "hi all"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{models.EventReceiveMessage}, b1.Targets())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture()
	router := setupRouter(f, &alice)

	rec := serve(router, http.MethodPost, "/admin/messages", gin.H{"text": "maintenance"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, http.MethodDelete, "/admin/messages", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	f.public.AssertNotCalled(t, "AppendPublic", mock.Anything, mock.Anything)
	f.public.AssertNotCalled(t, "PurgePublic", mock.Anything)
}

func TestPurgeByAdminNotifiesEveryone(t *testing.T) {
	f := newFixture()
	a1 := f.connect(t, "a1", alice)
	router := setupRouter(f, &admin)

	f.public.On("PurgePublic", mock.Anything).Return(int64(3), nil).Once()

	rec := serve(router, http.MethodDelete, "/admin/messages", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{models.EventMessagesPurged}, a1.Targets())
}
