// Package chat implements the hub methods of the chat core on top of the
// connection hub and the message store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-core/internal/chaterrors"
	"chat-core/internal/hub"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

const adminSenderPrefix = "[ADMIN] "

var tracer = otel.Tracer("chat-core/chat")

// Auditor records privileged and mutating operations.
type Auditor interface {
	Emit(ctx context.Context, level, action, text, requestID string, userID *string)
}

type Options struct {
	HistoryLimit  int
	MaxTextLength int
	MaxFileSize   int64
}

// UserSummary is one entry of GetAvailableUsers.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Service executes decoded commands for live connections. Every state change
// is persisted before it is delivered.
type Service struct {
	hub      *hub.Hub
	public   repositories.PublicMessageRepository
	private  repositories.PrivateMessageRepository
	users    repositories.UserRepository
	history  *History
	mutation *MutationAuthorizer
	audit    Auditor
	log      *slog.Logger
	opts     Options
}

func NewService(
	h *hub.Hub,
	public repositories.PublicMessageRepository,
	private repositories.PrivateMessageRepository,
	users repositories.UserRepository,
	audit Auditor,
	log *slog.Logger,
	opts Options,
) *Service {
	return &Service{
		hub:      h,
		public:   public,
		private:  private,
		users:    users,
		history:  NewHistory(public, private, h.Router(), opts.HistoryLimit),
		mutation: NewMutationAuthorizer(private, h.Router(), opts.MaxTextLength),
		audit:    audit,
		log:      log,
		opts:     opts,
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx with the request id used in audit records.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Connect records the identity in the directory, registers the connection
// and replays the public feed to it. Registration happens before the replay
// so a message sent meanwhile may arrive twice but is never missed.
func (s *Service) Connect(ctx context.Context, conn hub.Connection) error {
	if conn.Principal.ID == "" {
		return chaterrors.ErrUnauthenticated
	}
	if err := s.users.EnsureUser(ctx, conn.Principal.Identity); err != nil {
		s.log.Warn("directory rejected identity", "conn_id", conn.Handle, "user_id", conn.Principal.ID, "username", conn.Principal.Username, "error", err)
		return storeError(err)
	}
	if err := s.hub.Connect(conn); err != nil {
		return err
	}

	replayed, err := s.history.ReplayPublic(ctx, conn.Handle)
	if err != nil {
		s.log.Warn("public feed replay failed", "conn_id", conn.Handle, "error", err)
		return nil
	}
	s.log.Debug("public feed replayed", "conn_id", conn.Handle, "messages", replayed)
	return nil
}

// Disconnect releases everything the connection held.
func (s *Service) Disconnect(handle string) {
	s.hub.Disconnect(handle)
}

// Dispatch runs one command on behalf of a live connection and returns the
// invocation result, if the method has one.
func (s *Service) Dispatch(ctx context.Context, handle string, cmd Command) (result any, err error) {
	ctx, span := tracer.Start(ctx, "chat.dispatch", trace.WithAttributes(
		attribute.String("method", cmd.Method()),
		attribute.String("conn_id", handle),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case chaterrors.IsCallerError(err):
			outcome = "rejected"
			s.log.Debug("command rejected", "method", cmd.Method(), "conn_id", handle, "error", err)
		default:
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.Error("command failed", "method", cmd.Method(), "conn_id", handle, "error", err)
		}
		observability.ObserveCommand(cmd.Method(), outcome, time.Since(start))
		span.End()
	}()

	p, err := s.hub.Principal(handle)
	if err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case SendMessage:
		return nil, s.SendMessage(ctx, p, c.Text)
	case SendAdminMessage:
		return nil, s.SendAdminMessage(ctx, p, c.Text)
	case JoinGroup:
		return nil, s.joinGroup(ctx, handle, p, c.GroupName)
	case LeaveGroup:
		return nil, s.leaveGroup(ctx, handle, p, c.GroupName)
	case PurgeAllMessages:
		return nil, s.PurgeAllMessages(ctx, p)
	case StartFileTransfer:
		return nil, s.startFileTransfer(handle, c)
	case SendFileChunk:
		return nil, s.sendFileChunk(handle, c.Chunk)
	case CompleteFileTransfer:
		return nil, s.completeFileTransfer(ctx, handle, p)
	case SendPrivateMessage:
		return s.SendPrivateMessage(ctx, p, c.ToUserID, c.Text)
	case SendPrivateFile:
		return s.SendPrivateFile(ctx, p, c)
	case DeleteMessage:
		return s.DeleteMessage(ctx, p, c.MessageID)
	case UpdateMessage:
		return s.UpdateMessage(ctx, p, c.MessageID, c.NewText)
	case GetAvailableUsers:
		return s.AvailableUsers(ctx, p)
	case GetConversation:
		return s.Conversation(ctx, p, c.OtherUserID)
	default:
		return nil, fmt.Errorf("%w: unhandled command %T", chaterrors.ErrInvalidArgument, cmd)
	}
}

// SendMessage appends a text entry to the public feed and broadcasts it.
func (s *Service) SendMessage(ctx context.Context, p models.Principal, text string) error {
	text, err := cleanText(text, s.opts.MaxTextLength)
	if err != nil {
		return err
	}
	stored, err := s.public.AppendPublic(ctx, models.PublicMessage{Sender: p.Username, Text: text})
	if err != nil {
		return storeError(err)
	}
	s.hub.Router().Broadcast(ctx, models.PublicMessageEvent(stored))
	return nil
}

// SendAdminMessage broadcasts a system flagged feed entry. Admin only.
func (s *Service) SendAdminMessage(ctx context.Context, p models.Principal, text string) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin role required", chaterrors.ErrForbidden)
	}
	text, err := cleanText(text, s.opts.MaxTextLength)
	if err != nil {
		return err
	}
	stored, err := s.public.AppendPublic(ctx, models.PublicMessage{
		Sender:   adminSenderPrefix + p.Username,
		Text:     text,
		IsSystem: true,
	})
	if err != nil {
		return storeError(err)
	}
	s.hub.Router().Broadcast(ctx, models.PublicMessageEvent(stored))
	s.emitAudit(ctx, p, "info", "admin_message", fmt.Sprintf("admin message %d sent", stored.ID))
	return nil
}

// PurgeAllMessages clears the public feed and tells every client. Admin only.
func (s *Service) PurgeAllMessages(ctx context.Context, p models.Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin role required", chaterrors.ErrForbidden)
	}
	purged, err := s.public.PurgePublic(ctx)
	if err != nil {
		return storeError(err)
	}
	s.hub.Router().Broadcast(ctx, models.PurgedEvent())
	s.emitAudit(ctx, p, "warn", "purge", fmt.Sprintf("public feed purged, %d messages removed", purged))
	return nil
}

func (s *Service) joinGroup(ctx context.Context, handle string, p models.Principal, name string) error {
	name, err := hub.NormalizeGroupName(name)
	if err != nil {
		return err
	}
	if err := s.hub.Join(handle, name); err != nil {
		return err
	}
	s.hub.Router().BroadcastToGroup(ctx, name, models.SystemEvent(fmt.Sprintf("%s has joined the group %s", p.Username, name)))
	return nil
}

func (s *Service) leaveGroup(ctx context.Context, handle string, p models.Principal, name string) error {
	name, err := hub.NormalizeGroupName(name)
	if err != nil {
		return err
	}
	if err := s.hub.Leave(handle, name); err != nil {
		return err
	}
	s.hub.Router().BroadcastToGroup(ctx, name, models.SystemEvent(fmt.Sprintf("%s has left the group %s", p.Username, name)))
	return nil
}

func (s *Service) startFileTransfer(handle string, c StartFileTransfer) error {
	if err := s.hub.StartTransfer(handle, c.FileName, c.FileSize, c.ContentType); err != nil {
		return err
	}
	s.hub.Router().SendTo(handle, models.TransferStartedEvent())
	return nil
}

func (s *Service) sendFileChunk(handle string, chunk []byte) error {
	progress, ok, err := s.hub.AppendChunk(handle, chunk)
	if err != nil || !ok {
		return err
	}
	s.hub.Router().SendTo(handle, models.TransferProgressEvent(progress*100))
	return nil
}

func (s *Service) completeFileTransfer(ctx context.Context, handle string, p models.Principal) error {
	file, err := s.hub.CompleteTransfer(handle)
	if err != nil {
		return err
	}
	stored, err := s.public.AppendPublic(ctx, models.PublicMessage{
		Sender:   p.Username,
		FileName: file.Name,
		FileData: file.Data,
		FileType: file.ContentType,
	})
	if err != nil {
		return storeError(err)
	}
	s.hub.Router().Broadcast(ctx, models.PublicMessageEvent(stored))
	return nil
}

// SendPrivateMessage stores a text message to toUserID and delivers it to
// every device of both parties.
func (s *Service) SendPrivateMessage(ctx context.Context, p models.Principal, toUserID, text string) (models.PrivateMessage, error) {
	text, err := cleanText(text, s.opts.MaxTextLength)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	if _, err := s.users.GetUser(ctx, toUserID); err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	stored, err := s.private.AppendPrivate(ctx, models.PrivateMessage{
		FromUserID:   p.ID,
		FromUserName: p.Username,
		ToUserID:     toUserID,
		Text:         text,
	})
	if err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	s.hub.Router().DeliverPrivate(ctx, stored.FromUserID, stored.ToUserID, models.PrivateEvent(models.EventReceivePrivateMessage, stored))
	return stored, nil
}

// SendPrivateFile stores a file sent in one piece to c.ToUserID. The
// sender's devices get ReceiveOwnFile, the recipient's ReceivePrivateFile.
func (s *Service) SendPrivateFile(ctx context.Context, p models.Principal, c SendPrivateFile) (models.PrivateMessage, error) {
	if len(c.FileData) == 0 {
		return models.PrivateMessage{}, fmt.Errorf("%w: file is empty", chaterrors.ErrInvalidArgument)
	}
	if s.opts.MaxFileSize > 0 && int64(len(c.FileData)) > s.opts.MaxFileSize {
		return models.PrivateMessage{}, fmt.Errorf("%w: file larger than %d bytes", chaterrors.ErrInvalidArgument, s.opts.MaxFileSize)
	}
	if _, err := s.users.GetUser(ctx, c.ToUserID); err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	fileType := c.FileType
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = mimetype.Detect(c.FileData).String()
	}
	stored, err := s.private.AppendPrivate(ctx, models.PrivateMessage{
		FromUserID:   p.ID,
		FromUserName: p.Username,
		ToUserID:     c.ToUserID,
		FileName:     c.FileName,
		FileData:     c.FileData,
		FileType:     fileType,
	})
	if err != nil {
		return models.PrivateMessage{}, storeError(err)
	}
	s.hub.Router().DeliverPrivateEcho(ctx, stored.FromUserID, stored.ToUserID,
		models.PrivateEvent(models.EventReceivePrivateFile, stored),
		models.PrivateEvent(models.EventReceiveOwnFile, stored),
	)
	return stored, nil
}

// UpdateMessage edits one of p's private text messages.
func (s *Service) UpdateMessage(ctx context.Context, p models.Principal, id int64, text string) (models.PrivateMessage, error) {
	msg, err := s.mutation.Edit(ctx, p, id, text)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	s.emitAudit(ctx, p, "info", "edit", fmt.Sprintf("private message %d edited", id))
	return msg, nil
}

// DeleteMessage tombstones one of p's private messages.
func (s *Service) DeleteMessage(ctx context.Context, p models.Principal, id int64) (models.PrivateMessage, error) {
	msg, err := s.mutation.Delete(ctx, p, id)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	s.emitAudit(ctx, p, "info", "delete", fmt.Sprintf("private message %d deleted", id))
	return msg, nil
}

// AvailableUsers lists every known identity except p, flagged with whether
// it currently has a live connection.
func (s *Service) AvailableUsers(ctx context.Context, p models.Principal) ([]UserSummary, error) {
	users, err := s.users.ListUsersExcept(ctx, p.ID)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{
			ID:       u.ID,
			Username: u.Username,
			Online:   len(s.hub.Registry().ConnectionsOf(u.ID)) > 0,
		})
	}
	return out, nil
}

// Conversation returns p's history with otherUserID.
func (s *Service) Conversation(ctx context.Context, p models.Principal, otherUserID string) ([]models.PrivateMessage, error) {
	if _, err := s.users.GetUser(ctx, otherUserID); err != nil {
		return nil, storeError(err)
	}
	return s.history.Conversation(ctx, p.ID, otherUserID)
}

// PublicFeed returns the most recent public entries, newest first.
func (s *Service) PublicFeed(ctx context.Context, limit int) ([]models.PublicMessage, error) {
	return s.history.PublicFeed(ctx, limit)
}

func (s *Service) emitAudit(ctx context.Context, p models.Principal, level, action, text string) {
	if s.audit == nil {
		return
	}
	userID := p.ID
	s.audit.Emit(ctx, level, action, text, requestIDFrom(ctx), &userID)
}

// IsTransportFatal reports whether err means the connection itself is no
// longer usable.
func IsTransportFatal(err error) bool {
	return errors.Is(err, chaterrors.ErrUnauthenticated)
}
