package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"chat-core/internal/chaterrors"
)

// Hub method names as they appear on the wire.
const (
	MethodSendMessage          = "SendMessage"
	MethodSendAdminMessage     = "SendAdminMessage"
	MethodJoinGroup            = "JoinGroup"
	MethodLeaveGroup           = "LeaveGroup"
	MethodPurgeAllMessages     = "PurgeAllMessages"
	MethodStartFileTransfer    = "StartFileTransfer"
	MethodSendFileChunk        = "SendFileChunk"
	MethodCompleteFileTransfer = "CompleteFileTransfer"
	MethodSendPrivateMessage   = "SendPrivateMessage"
	MethodSendPrivateFile      = "SendPrivateFile"
	MethodDeleteMessage        = "DeleteMessage"
	MethodUpdateMessage        = "UpdateMessage"
	MethodGetAvailableUsers    = "GetAvailableUsers"
	MethodGetConversation      = "GetConversation"
)

// Command is one decoded client invocation. The set of implementations is
// closed; Service.Dispatch handles each of them.
type Command interface {
	Method() string
	command()
}

type SendMessage struct {
	Text string `validate:"required"`
}

type SendAdminMessage struct {
	Text string `validate:"required"`
}

type JoinGroup struct {
	GroupName string `validate:"required"`
}

type LeaveGroup struct {
	GroupName string `validate:"required"`
}

type PurgeAllMessages struct{}

type StartFileTransfer struct {
	FileName    string `validate:"required"`
	FileSize    int64  `validate:"gt=0"`
	ContentType string
}

type SendFileChunk struct {
	Chunk []byte
}

type CompleteFileTransfer struct{}

type SendPrivateMessage struct {
	ToUserID string `validate:"required"`
	Text     string `validate:"required"`
}

type SendPrivateFile struct {
	ToUserID string `validate:"required"`
	FileName string `validate:"required"`
	FileData []byte `validate:"required"`
	FileType string
}

type DeleteMessage struct {
	MessageID int64 `validate:"gt=0"`
}

type UpdateMessage struct {
	MessageID int64  `validate:"gt=0"`
	NewText   string `validate:"required"`
}

type GetAvailableUsers struct{}

type GetConversation struct {
	OtherUserID string `validate:"required"`
}

func (SendMessage) Method() string          { return MethodSendMessage }
func (SendAdminMessage) Method() string     { return MethodSendAdminMessage }
func (JoinGroup) Method() string            { return MethodJoinGroup }
func (LeaveGroup) Method() string           { return MethodLeaveGroup }
func (PurgeAllMessages) Method() string     { return MethodPurgeAllMessages }
func (StartFileTransfer) Method() string    { return MethodStartFileTransfer }
func (SendFileChunk) Method() string        { return MethodSendFileChunk }
func (CompleteFileTransfer) Method() string { return MethodCompleteFileTransfer }
func (SendPrivateMessage) Method() string   { return MethodSendPrivateMessage }
func (SendPrivateFile) Method() string      { return MethodSendPrivateFile }
func (DeleteMessage) Method() string        { return MethodDeleteMessage }
func (UpdateMessage) Method() string        { return MethodUpdateMessage }
func (GetAvailableUsers) Method() string    { return MethodGetAvailableUsers }
func (GetConversation) Method() string      { return MethodGetConversation }

func (SendMessage) command()          {}
func (SendAdminMessage) command()     {}
func (JoinGroup) command()            {}
func (LeaveGroup) command()           {}
func (PurgeAllMessages) command()     {}
func (StartFileTransfer) command()    {}
func (SendFileChunk) command()        {}
func (CompleteFileTransfer) command() {}
func (SendPrivateMessage) command()   {}
func (SendPrivateFile) command()      {}
func (DeleteMessage) command()        {}
func (UpdateMessage) command()        {}
func (GetAvailableUsers) command()    {}
func (GetConversation) command()      {}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCommand turns a wire invocation into a Command. Arguments are
// positional JSON values; byte arrays travel as base64 strings.
func DecodeCommand(target string, args []json.RawMessage) (Command, error) {
	var (
		cmd Command
		err error
	)
	switch target {
	case MethodSendMessage:
		var c SendMessage
		err = decodeArgs(target, args, &c.Text)
		cmd = c
	case MethodSendAdminMessage:
		var c SendAdminMessage
		err = decodeArgs(target, args, &c.Text)
		cmd = c
	case MethodJoinGroup:
		var c JoinGroup
		err = decodeArgs(target, args, &c.GroupName)
		cmd = c
	case MethodLeaveGroup:
		var c LeaveGroup
		err = decodeArgs(target, args, &c.GroupName)
		cmd = c
	case MethodPurgeAllMessages:
		err = decodeArgs(target, args)
		cmd = PurgeAllMessages{}
	case MethodStartFileTransfer:
		var c StartFileTransfer
		err = decodeArgs(target, args, &c.FileName, &c.FileSize, &c.ContentType)
		cmd = c
	case MethodSendFileChunk:
		var c SendFileChunk
		err = decodeArgs(target, args, &c.Chunk)
		cmd = c
	case MethodCompleteFileTransfer:
		err = decodeArgs(target, args)
		cmd = CompleteFileTransfer{}
	case MethodSendPrivateMessage:
		var c SendPrivateMessage
		err = decodeArgs(target, args, &c.ToUserID, &c.Text)
		cmd = c
	case MethodSendPrivateFile:
		var c SendPrivateFile
		err = decodeArgs(target, args, &c.ToUserID, &c.FileName, &c.FileData, &c.FileType)
		cmd = c
	case MethodDeleteMessage:
		var c DeleteMessage
		err = decodeArgs(target, args, &c.MessageID)
		cmd = c
	case MethodUpdateMessage:
		var c UpdateMessage
		err = decodeArgs(target, args, &c.MessageID, &c.NewText)
		cmd = c
	case MethodGetAvailableUsers:
		err = decodeArgs(target, args)
		cmd = GetAvailableUsers{}
	case MethodGetConversation:
		var c GetConversation
		err = decodeArgs(target, args, &c.OtherUserID)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: unknown method %q", chaterrors.ErrInvalidArgument, target)
	}
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", chaterrors.ErrInvalidArgument, target, err)
	}
	return cmd, nil
}

func decodeArgs(target string, args []json.RawMessage, dst ...any) error {
	if len(args) != len(dst) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", chaterrors.ErrInvalidArgument, target, len(dst), len(args))
	}
	for i, raw := range args {
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("%w: %s argument %d: %v", chaterrors.ErrInvalidArgument, target, i, err)
		}
	}
	return nil
}
