package models

import "time"

// Server to client push targets.
const (
	EventReceiveMessage        = "ReceiveMessage"
	EventReceiveFileMessage    = "ReceiveFileMessage"
	EventReceiveErrorMessage   = "ReceiveErrorMessage"
	EventReceiveSystemMessage  = "ReceiveSystemMessage"
	EventReceivePrivateMessage = "ReceivePrivateMessage"
	EventReceivePrivateFile    = "ReceivePrivateFile"
	EventReceiveOwnFile        = "ReceiveOwnFile"
	EventMessageDeleted        = "MessageDeleted"
	EventMessageUpdated        = "MessageUpdated"
	EventMessagesPurged        = "OnMessagesPurged"
	EventFileTransferStarted   = "FileTransferStarted"
	EventFileTransferProgress  = "FileTransferProgress"
)

// Event is one push to a client: a target method and positional arguments.
type Event struct {
	Target    string
	Arguments []any
}

// systemMessage is the single-argument form used for system flagged feed
// entries.
type systemMessage struct {
	Sender          string    `json:"sender"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"timestamp"`
	IsSystemMessage bool      `json:"isSystemMessage"`
}

// PublicMessageEvent renders a feed entry the way clients expect it, both on
// live broadcast and on replay.
func PublicMessageEvent(m PublicMessage) Event {
	switch {
	case m.HasFile():
		return Event{Target: EventReceiveFileMessage, Arguments: []any{m.Sender, m.FileName, m.FileData, m.FileType, m.Timestamp}}
	case m.IsSystem:
		return Event{Target: EventReceiveMessage, Arguments: []any{systemMessage{
			Sender:          m.Sender,
			Text:            m.Text,
			Timestamp:       m.Timestamp,
			IsSystemMessage: true,
		}}}
	default:
		return Event{Target: EventReceiveMessage, Arguments: []any{m.Sender, m.Text, m.Timestamp, m.DateGroup()}}
	}
}

// ErrorEvent reports a caller error to the originating connection.
func ErrorEvent(text string) Event {
	return Event{Target: EventReceiveErrorMessage, Arguments: []any{text}}
}

// SystemEvent is a plain-text notice, e.g. group join/leave.
func SystemEvent(text string) Event {
	return Event{Target: EventReceiveSystemMessage, Arguments: []any{text}}
}

// PrivateEvent wraps a private message for one of the private targets.
func PrivateEvent(target string, m PrivateMessage) Event {
	return Event{Target: target, Arguments: []any{m}}
}

// PurgedEvent tells every client the public feed was cleared.
func PurgedEvent() Event {
	return Event{Target: EventMessagesPurged, Arguments: []any{}}
}

// TransferStartedEvent acknowledges StartFileTransfer to its caller.
func TransferStartedEvent() Event {
	return Event{Target: EventFileTransferStarted, Arguments: []any{}}
}

// TransferProgressEvent reports upload progress in percent to its caller.
func TransferProgressEvent(percent float64) Event {
	return Event{Target: EventFileTransferProgress, Arguments: []any{percent}}
}
