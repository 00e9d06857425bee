package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTombstoneClearsPayloadKeepsParties(t *testing.T) {
	ts := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	msg := PrivateMessage{
		ID:         4,
		FromUserID: "a",
		ToUserID:   "b",
		Text:       "secret",
		FileName:   "f.png",
		FileData:   []byte{1, 2},
		FileType:   "image/png",
		Timestamp:  ts,
		Edited:     true,
	}

	dead := msg.Tombstone()

	assert.Equal(t, TombstoneText, dead.Text)
	assert.Empty(t, dead.FileName)
	assert.Nil(t, dead.FileData)
	assert.Empty(t, dead.FileType)
	assert.True(t, dead.Deleted)
	assert.Equal(t, "a", dead.FromUserID)
	assert.Equal(t, "b", dead.ToUserID)
	assert.Equal(t, ts, dead.Timestamp)
	assert.False(t, dead.HasFile())
	assert.Equal(t, "secret", msg.Text)
}

func TestPublicMessageEventShapes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	text := PublicMessageEvent(PublicMessage{Sender: "bob", Text: "hi", Timestamp: ts})
	assert.Equal(t, EventReceiveMessage, text.Target)
	assert.Equal(t, []any{"bob", "hi", ts, "2024-03-01"}, text.Arguments)

	file := PublicMessageEvent(PublicMessage{Sender: "bob", FileName: "a.txt", FileData: []byte("x"), FileType: "text/plain", Timestamp: ts})
	assert.Equal(t, EventReceiveFileMessage, file.Target)
	assert.Len(t, file.Arguments, 5)

	system := PublicMessageEvent(PublicMessage{Sender: "[ADMIN] root", Text: "maintenance", Timestamp: ts, IsSystem: true})
	assert.Equal(t, EventReceiveMessage, system.Target)
	assert.Len(t, system.Arguments, 1)
}

func TestPrincipalIsAdmin(t *testing.T) {
	assert.True(t, Principal{Roles: []string{"user", RoleAdmin}}.IsAdmin())
	assert.False(t, Principal{Roles: []string{"user"}}.IsAdmin())
}
