package hub

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chat-core/internal/chaterrors"
)

const genericContentType = "application/octet-stream"

// TransferSession stages one chunked upload for one connection.
type TransferSession struct {
	Handle       string
	FileName     string
	ContentType  string
	DeclaredSize int64
	Received     int64
	StartedAt    time.Time
	buf          bytes.Buffer
}

// CompletedFile is what a finished transfer hands back to the caller.
type CompletedFile struct {
	Name        string
	Data        []byte
	ContentType string
}

// Assembler holds at most one transfer session per connection handle.
type Assembler struct {
	mu       sync.Mutex
	maxSize  int64
	sessions map[string]*TransferSession
}

// NewAssembler creates an assembler that refuses uploads above maxSize bytes.
func NewAssembler(maxSize int64) *Assembler {
	return &Assembler{
		maxSize:  maxSize,
		sessions: make(map[string]*TransferSession),
	}
}

// Start opens a session for handle, releasing any session already in
// progress on it.
func (a *Assembler) Start(handle, name string, declaredSize int64, contentType string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: file name is empty", chaterrors.ErrInvalidArgument)
	}
	if declaredSize <= 0 {
		return fmt.Errorf("%w: declared size must be positive", chaterrors.ErrInvalidArgument)
	}
	if a.maxSize > 0 && declaredSize > a.maxSize {
		return fmt.Errorf("%w: declared size %d exceeds limit %d", chaterrors.ErrInvalidArgument, declaredSize, a.maxSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[handle] = &TransferSession{
		Handle:       handle,
		FileName:     name,
		ContentType:  strings.TrimSpace(contentType),
		DeclaredSize: declaredSize,
		StartedAt:    time.Now(),
	}
	return nil
}

// AppendChunk adds bytes to the handle's session and returns the progress
// ratio. Without a session it is a no-op and ok is false. A chunk that would
// exceed the declared size is rejected whole and the session is left intact.
func (a *Assembler) AppendChunk(handle string, chunk []byte) (progress float64, ok bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[handle]
	if !ok {
		return 0, false, nil
	}
	if s.Received+int64(len(chunk)) > s.DeclaredSize {
		return s.ratio(), true, fmt.Errorf("%w: %d bytes received, chunk of %d exceeds declared %d",
			chaterrors.ErrTransferOverflow, s.Received, len(chunk), s.DeclaredSize)
	}
	s.buf.Write(chunk)
	s.Received += int64(len(chunk))
	return s.ratio(), true, nil
}

func (s *TransferSession) ratio() float64 {
	return float64(s.Received) / float64(s.DeclaredSize)
}

// Complete removes the handle's session and returns the assembled file.
// A short upload is refused and kept so the client can send the rest.
func (a *Assembler) Complete(handle string) (CompletedFile, error) {
	a.mu.Lock()
	s, ok := a.sessions[handle]
	if !ok {
		a.mu.Unlock()
		return CompletedFile{}, chaterrors.ErrNoActiveTransfer
	}
	if s.Received != s.DeclaredSize {
		a.mu.Unlock()
		return CompletedFile{}, fmt.Errorf("%w: transfer incomplete, %d of %d bytes", chaterrors.ErrInvalidState, s.Received, s.DeclaredSize)
	}
	delete(a.sessions, handle)
	a.mu.Unlock()

	data := s.buf.Bytes()
	contentType := s.ContentType
	if contentType == "" || contentType == genericContentType {
		contentType = mimetype.Detect(data).String()
	}
	return CompletedFile{Name: s.FileName, Data: data, ContentType: contentType}, nil
}

// Abort discards the handle's session without persisting it.
func (a *Assembler) Abort(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[handle]
	delete(a.sessions, handle)
	return ok
}

// Active reports whether handle has a transfer in progress.
func (a *Assembler) Active(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[handle]
	return ok
}

// Count returns the number of sessions in progress.
func (a *Assembler) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
