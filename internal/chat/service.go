// Package chat runs conversational turns: it assembles memory-aware context,
// calls the completion model, and keeps both the rolling and durable history.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vox-os/vox-memory/internal/apperr"
	"github.com/vox-os/vox-memory/internal/history"
	"github.com/vox-os/vox-memory/internal/llm"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/memory"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/store"
	"github.com/vox-os/vox-memory/internal/textproc"
)

// NoResponse is the reply used when the model returns nothing.
const NoResponse = "(no response)"

// Turn results recorded in metrics.
const (
	resultOK     = "ok"
	resultFailed = "failed"
)

type Deps struct {
	Sessions store.SessionStore
	Memory   *memory.Service
	History  *history.Cache
	LLM      llm.LLM
}

type Options struct {
	// AutoCapture runs every message through the classifier, not only explicit requests.
	AutoCapture bool
	CharBudget  int
	RetrievalK  int
}

type Service struct {
	sessions  store.SessionStore
	memory    *memory.Service
	history   *history.Cache
	llm       llm.LLM
	assembler *Assembler
	opts      Options
	locks     ownerLocks
}

func NewService(d Deps, opts Options) *Service {
	return &Service{
		sessions:  d.Sessions,
		memory:    d.Memory,
		history:   d.History,
		llm:       d.LLM,
		assembler: NewAssembler(d.Memory, opts.CharBudget, opts.RetrievalK),
		opts:      opts,
		locks:     ownerLocks{held: make(map[string]*ownerLock)},
	}
}

// TurnRequest is one user message. A non-nil History replaces the owner's
// rolling history before the turn, e.g. after a client reload.
type TurnRequest struct {
	Message   string
	SessionID string
	History   []model.Entry
}

type TurnResult struct {
	TurnID       string         `json:"turn_id"`
	SessionID    string         `json:"session_id"`
	Reply        string         `json:"reply"`
	MemoriesUsed []model.Memory `json:"memories_used"`
	MemorySaved  bool           `json:"memory_saved"`
	SavedMemory  *model.Memory  `json:"saved_memory,omitempty"`
	// Persisted is false when the durable log write failed.
	Persisted bool `json:"persisted"`
}

// SendTurn answers one message. Turns of the same owner run one at a time.
// Only invalid input, an unknown session or a completion failure fail the
// turn; memory and log problems degrade silently.
func (s *Service) SendTurn(ctx context.Context, caller model.Caller, req TurnRequest) (*TurnResult, error) {
	const op = "chat.turn"
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperr.InvalidInput(op, "message is required")
	}
	owner := caller.UserID
	if owner == "" {
		return nil, apperr.InvalidInput(op, "owner is required")
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	sessionID, err := s.resolveSession(ctx, owner, req.SessionID)
	if err != nil {
		return nil, err
	}
	s.prepareHistory(ctx, owner, sessionID, req.History)

	asm, err := s.assembler.Assemble(ctx, caller, s.history.Get(owner), message)
	if err != nil {
		metrics.RecordTurn(resultFailed, time.Since(start))
		return nil, apperr.Unavailable(op, err)
	}

	reply, err := s.llm.Chat(ctx, "", asm.Messages)
	if err != nil {
		logger.Error("completion failed", "owner", owner, "error", err)
		metrics.RecordDependencyFailure(metrics.DepCompletion)
		metrics.RecordTurn(resultFailed, time.Since(start))
		return nil, apperr.Unavailable(op, err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = NoResponse
	}

	s.history.Push(owner, model.RoleUser, message)
	s.history.Push(owner, model.RoleAssistant, reply)

	result := &TurnResult{
		TurnID:       uuid.NewString(),
		SessionID:    sessionID,
		Reply:        reply,
		MemoriesUsed: asm.Relevant,
		Persisted:    true,
	}
	if err := s.persist(ctx, sessionID, message, reply); err != nil {
		logger.Warn("turn not persisted", "owner", owner, "session", sessionID, "error", err)
		metrics.RecordDependencyFailure(metrics.DepStore)
		result.Persisted = false
	}

	result.SavedMemory = s.capture(ctx, caller, message)
	result.MemorySaved = result.SavedMemory != nil

	metrics.RecordTurn(resultOK, time.Since(start))
	logger.Debug("turn complete", "owner", owner, "session", sessionID, "tier", asm.Tier,
		"memories", len(asm.Relevant), "saved", result.MemorySaved, "elapsed", time.Since(start))
	return result, nil
}

// Preview assembles the context a message would be sent with, without calling
// the model or changing any history.
func (s *Service) Preview(ctx context.Context, caller model.Caller, message string) (*Assembly, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.InvalidInput("chat.preview", "message is required")
	}
	return s.assembler.Assemble(ctx, caller, s.history.Get(caller.UserID), message)
}

func (s *Service) resolveSession(ctx context.Context, owner, id string) (string, error) {
	if id == "" {
		return s.DefaultSession(ctx, owner)
	}
	if _, err := s.sessions.GetSession(ctx, owner, id); err != nil {
		return "", sessionErr("chat.session", id, err)
	}
	return id, nil
}

// prepareHistory reseeds the rolling cache from the client, or hydrates it
// from the durable log when this process has nothing for the owner.
func (s *Service) prepareHistory(ctx context.Context, owner, sessionID string, seed []model.Entry) {
	if seed != nil {
		s.history.Reseed(owner, seed)
		return
	}
	if s.history.Len(owner) > 0 {
		return
	}
	msgs, err := s.sessions.RecentMessages(ctx, sessionID, s.history.Limit())
	if err != nil {
		logger.Warn("history hydration failed", "owner", owner, "session", sessionID, "error", err)
		return
	}
	entries := make([]model.Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, model.Entry{Role: m.Role, Content: m.Content})
	}
	s.history.Reseed(owner, entries)
}

func (s *Service) persist(ctx context.Context, sessionID, message, reply string) error {
	_, err := s.sessions.AppendMessages(ctx, sessionID,
		model.Entry{Role: model.RoleUser, Content: message},
		model.Entry{Role: model.RoleAssistant, Content: reply},
	)
	return err
}

// capture stores the message as a memory when asked to, or when auto capture
// is on and the classifier accepts it.
func (s *Service) capture(ctx context.Context, caller model.Caller, message string) *model.Memory {
	var (
		m   *model.Memory
		err error
	)
	switch {
	case textproc.WantsMemory(message):
		m, err = s.memory.Capture(ctx, caller, textproc.StripTrigger(message), true)
	case s.opts.AutoCapture:
		m, err = s.memory.Capture(ctx, caller, message, false)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("memory save from chat failed", "owner", caller.UserID, "error", err)
		return nil
	}
	return m
}

// DefaultSession returns the owner's newest session titled "Default",
// creating it on first use.
func (s *Service) DefaultSession(ctx context.Context, owner string) (string, error) {
	const op = "chat.default_session"
	sess, err := s.sessions.LatestSessionByTitle(ctx, owner, model.DefaultSessionTitle)
	if err == nil {
		return sess.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", apperr.Store(op, err)
	}
	sess, err = s.sessions.CreateSession(ctx, owner, model.DefaultSessionTitle)
	if err != nil {
		return "", apperr.Store(op, err)
	}
	return sess.ID, nil
}

// StartSession creates a session. A blank title becomes the current timestamp.
func (s *Service) StartSession(ctx context.Context, owner, title string) (*model.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = time.Now().Format("2006-01-02 15:04:05")
	}
	sess, err := s.sessions.CreateSession(ctx, owner, title)
	if err != nil {
		return nil, apperr.Store("chat.start_session", err)
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, owner string) ([]model.Session, error) {
	sessions, err := s.sessions.ListSessions(ctx, owner)
	if err != nil {
		return nil, apperr.Store("chat.list_sessions", err)
	}
	return sessions, nil
}

func (s *Service) ListMessages(ctx context.Context, owner, sessionID string) ([]model.Message, error) {
	const op = "chat.list_messages"
	if _, err := s.sessions.GetSession(ctx, owner, sessionID); err != nil {
		return nil, sessionErr(op, sessionID, err)
	}
	msgs, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	return msgs, nil
}

// AppendMessage adds one message to an owned session.
func (s *Service) AppendMessage(ctx context.Context, owner, sessionID string, role model.Role, content string) (*model.Message, error) {
	const op = "chat.append_message"
	if !role.Conversational() {
		return nil, apperr.InvalidInput(op, "role must be user or assistant")
	}
	if _, err := s.sessions.GetSession(ctx, owner, sessionID); err != nil {
		return nil, sessionErr(op, sessionID, err)
	}
	msg, err := s.sessions.AppendMessage(ctx, sessionID, role, content)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	return msg, nil
}

// ClearSession deletes a session's messages and the owner's rolling history.
// An empty id targets the default session.
func (s *Service) ClearSession(ctx context.Context, owner, sessionID string) (string, error) {
	const op = "chat.clear_session"
	unlock := s.locks.lock(owner)
	defer unlock()

	sessionID, err := s.resolveSession(ctx, owner, sessionID)
	if err != nil {
		return "", err
	}
	if err := s.sessions.ClearMessages(ctx, sessionID); err != nil {
		return "", apperr.Store(op, err)
	}
	s.history.Clear(owner)
	return sessionID, nil
}

func (s *Service) DeleteSession(ctx context.Context, owner, sessionID string) error {
	const op = "chat.delete_session"
	unlock := s.locks.lock(owner)
	defer unlock()

	if err := s.sessions.DeleteSession(ctx, owner, sessionID); err != nil {
		return sessionErr(op, sessionID, err)
	}
	s.history.Clear(owner)
	return nil
}

func sessionErr(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "session "+id+" not found")
	}
	return apperr.Store(op, err)
}

// ownerLocks hands out one mutex per owner and drops it once nobody holds it.
type ownerLocks struct {
	mu   sync.Mutex
	held map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	ol, ok := l.held[owner]
	if !ok {
		ol = &ownerLock{}
		l.held[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.held, owner)
		}
		l.mu.Unlock()
	}
}
