package models

import "time"

// TombstoneText replaces the text of a deleted private message.
const TombstoneText = "[message deleted]"

const dateGroupLayout = "2006-01-02"

// PublicMessage is an entry of the shared public feed.
type PublicMessage struct {
	ID        int64     `db:"id" json:"id"`
	Sender    string    `db:"sender" json:"sender"`
	Text      string    `db:"text" json:"text"`
	FileName  string    `db:"file_name" json:"fileName,omitempty"`
	FileData  []byte    `db:"file_data" json:"fileData,omitempty"`
	FileType  string    `db:"file_type" json:"fileType,omitempty"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
	IsSystem  bool      `db:"is_system" json:"isSystemMessage"`
}

// HasFile reports whether the message carries an attachment.
func (m PublicMessage) HasFile() bool {
	return m.FileName != "" && m.FileData != nil
}

// DateGroup is the UTC calendar day the message belongs to.
func (m PublicMessage) DateGroup() string {
	return m.Timestamp.UTC().Format(dateGroupLayout)
}

// PrivateMessage is one message of a two-party conversation. Parties are
// referenced by identity id only.
type PrivateMessage struct {
	ID           int64     `db:"id" json:"id"`
	FromUserID   string    `db:"from_user_id" json:"fromUserId"`
	FromUserName string    `db:"from_user_name" json:"fromUserName"`
	ToUserID     string    `db:"to_user_id" json:"toUserId"`
	Text         string    `db:"text" json:"text,omitempty"`
	FileName     string    `db:"file_name" json:"fileName,omitempty"`
	FileData     []byte    `db:"file_data" json:"fileData,omitempty"`
	FileType     string    `db:"file_type" json:"fileType,omitempty"`
	Timestamp    time.Time `db:"created_at" json:"timestamp"`
	Edited       bool      `db:"edited" json:"isEdited"`
	Deleted      bool      `db:"deleted" json:"isDeleted"`
}

// HasFile reports whether the message carries an attachment.
func (m PrivateMessage) HasFile() bool {
	return m.FileName != "" && m.FileData != nil
}

// DateGroup is the UTC calendar day the message belongs to.
func (m PrivateMessage) DateGroup() string {
	return m.Timestamp.UTC().Format(dateGroupLayout)
}

// Tombstone returns the surviving shell of a deleted message: parties and
// timestamp stay, payload is cleared.
func (m PrivateMessage) Tombstone() PrivateMessage {
	m.Text = TombstoneText
	m.FileName = ""
	m.FileData = nil
	m.FileType = ""
	m.Deleted = true
	return m
}
