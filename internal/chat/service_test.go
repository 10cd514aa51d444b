package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vox-os/vox-memory/internal/apperr"
	"github.com/vox-os/vox-memory/internal/embedding"
	"github.com/vox-os/vox-memory/internal/enrich"
	"github.com/vox-os/vox-memory/internal/history"
	"github.com/vox-os/vox-memory/internal/llm"
	"github.com/vox-os/vox-memory/internal/llm/llmtest"
	"github.com/vox-os/vox-memory/internal/memory"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/retrieval"
	"github.com/vox-os/vox-memory/internal/store"
)

type chatFixture struct {
	svc      *Service
	store    *store.SQLiteStore
	memory   *memory.Service
	history  *history.Cache
	llm      *llmtest.Fake
	failChat atomic.Bool
}

// respond plays classifier, summarizer and assistant. Only statements about
// favorites are considered memorable.
func (f *chatFixture) respond(system string, msgs []llm.Message) (string, error) {
	last := msgs[len(msgs)-1].Content
	switch system {
	case enrich.ClassifierPrompt:
		if strings.Contains(strings.ToLower(last), "favorite") && !strings.HasSuffix(last, "?") {
			return "preferences", nil
		}
		return "none", nil
	case enrich.SummarizerPrompt:
		return "Summary.", nil
	}
	if f.failChat.Load() {
		return "", errors.New("upstream 503")
	}
	return "echo: " + last, nil
}

func newChatFixture(t *testing.T, opts Options) *chatFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &chatFixture{store: st}
	f.llm = &llmtest.Fake{Respond: f.respond}

	emb := embedding.NewHashEmbedder(256)
	f.memory = memory.NewService(memory.Deps{
		Store:      st,
		Classifier: enrich.NewClassifier(f.llm),
		Summarizer: enrich.NewSummarizer(f.llm, 300),
		Embedder:   emb,
		Retriever: retrieval.NewEngine(true,
			retrieval.NewVectorTier(st, emb),
			retrieval.NewLexicalTier(st),
		),
	}, memory.Options{IncludeGlobal: true, AllowGlobal: true})
	f.history = history.New(10, 0)
	f.svc = f.newService(opts)
	return f
}

func (f *chatFixture) newService(opts Options) *Service {
	return NewService(Deps{Sessions: f.store, Memory: f.memory, History: f.history, LLM: f.llm}, opts)
}

// completions returns the assistant calls, i.e. those without a system prompt argument.
func (f *chatFixture) completions() []llmtest.Call {
	var out []llmtest.Call
	for _, c := range f.llm.Calls() {
		if c.System == "" {
			out = append(out, c)
		}
	}
	return out
}

func TestRememberThenRecall(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{AutoCapture: true})

	res, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "Remember that my favorite color is blue"})
	require.NoError(t, err)
	assert.Equal(t, "echo: Remember that my favorite color is blue", res.Reply)
	assert.True(t, res.Persisted)
	assert.NotEmpty(t, res.TurnID)
	require.True(t, res.MemorySaved)
	assert.Equal(t, "my favorite color is blue", res.SavedMemory.Text)
	require.NotNil(t, res.SavedMemory.Category)
	assert.Equal(t, model.CategoryPreferences, *res.SavedMemory.Category)

	res2, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "What's my favorite color?"})
	require.NoError(t, err)
	assert.False(t, res2.MemorySaved)
	assert.Equal(t, res.SessionID, res2.SessionID)
	require.Len(t, res2.MemoriesUsed, 1)
	assert.Equal(t, res.SavedMemory.ID, res2.MemoriesUsed[0].ID)

	calls := f.completions()
	require.Len(t, calls, 2)
	msgs := calls[1].Messages
	var relevant string
	for _, m := range msgs {
		if m.Role == "system" && strings.HasPrefix(m.Content, relevantHeader) {
			relevant = m.Content
		}
	}
	assert.Contains(t, relevant, "favorite color is blue")
	assert.Equal(t, "Remember that my favorite color is blue", msgs[len(msgs)-3].Content)
	assert.Equal(t, "What's my favorite color?", msgs[len(msgs)-1].Content)
}

func TestAutoCaptureOff(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{AutoCapture: false})

	res, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "My favorite food is ramen"})
	require.NoError(t, err)
	assert.False(t, res.MemorySaved)
	assert.Equal(t, 0, f.llm.CallsWithSystem(enrich.ClassifierPrompt))

	res, err = f.svc.SendTurn(ctx, alice, TurnRequest{Message: "note to self: my favorite food is ramen"})
	require.NoError(t, err)
	assert.True(t, res.MemorySaved, "explicit requests are captured regardless of auto capture")
}

func TestTurnPersistsAndBoundsHistory(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	for i := 0; i < 12; i++ {
		_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: fmt.Sprintf("message %d", i)})
		require.NoError(t, err)
	}
	assert.Equal(t, 20, f.history.Len("alice"))

	sid, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)
	msgs, err := f.svc.ListMessages(ctx, "alice", sid)
	require.NoError(t, err)
	require.Len(t, msgs, 24)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "message 0", msgs[0].Content)
	assert.Equal(t, "echo: message 11", msgs[23].Content)
}

func TestHydrateFromDurableLog(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "tell me about rust"})
	require.NoError(t, err)

	// A restarted process starts with an empty rolling cache.
	f.history = history.New(10, 0)
	restarted := f.newService(Options{})

	_, err = restarted.SendTurn(ctx, alice, TurnRequest{Message: "in software"})
	require.NoError(t, err)

	calls := f.completions()
	msgs := calls[len(calls)-1].Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "tell me about rust", msgs[len(msgs)-3].Content)
	assert.Equal(t, "echo: tell me about rust", msgs[len(msgs)-2].Content)
}

func TestReseedFromClient(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	seed := []model.Entry{
		{Role: model.RoleSystem, Content: "ignored"},
		{Role: model.RoleUser, Content: "seeded question"},
		{Role: model.RoleAssistant, Content: "seeded answer"},
	}
	_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "follow up", History: seed})
	require.NoError(t, err)

	msgs := f.completions()[0].Messages
	for _, m := range msgs {
		assert.NotEqual(t, "ignored", m.Content)
	}
	assert.Equal(t, "seeded question", msgs[len(msgs)-3].Content)
	assert.Equal(t, 4, f.history.Len("alice"))
}

func TestCompletionFailure(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{AutoCapture: true})
	f.failChat.Store(true)

	_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "Remember that my favorite tea is oolong"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDependencyUnavailable))
	assert.Equal(t, 0, f.history.Len("alice"))

	sid, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)
	msgs, err := f.svc.ListMessages(ctx, "alice", sid)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	mems, err := f.memory.List(ctx, alice, memory.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, mems, "failed turns do not capture memories")
}

// brokenLog fails every turn write.
type brokenLog struct {
	store.SessionStore
}

func (brokenLog) AppendMessages(ctx context.Context, sessionID string, entries ...model.Entry) ([]model.Message, error) {
	return nil, errors.New("disk full")
}

func TestTurnSurvivesLogFailure(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})
	svc := NewService(Deps{Sessions: brokenLog{f.store}, Memory: f.memory, History: f.history, LLM: f.llm}, Options{})

	res, err := svc.SendTurn(ctx, alice, TurnRequest{Message: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello there", res.Reply)
	assert.False(t, res.Persisted)
	assert.Len(t, f.history.Get("alice"), 2)

	msgs, err := f.store.ListMessages(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendTurnValidation(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "   "})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	bobSession, err := f.svc.StartSession(ctx, "bob", "Bob's notes")
	require.NoError(t, err)
	_, err = f.svc.SendTurn(ctx, alice, TurnRequest{Message: "hi", SessionID: bobSession.ID})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Empty(t, f.llm.Calls())
}

func TestDefaultSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	a, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)
	b, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := f.svc.DefaultSession(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	res, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: "hello"})
	require.NoError(t, err)
	_, err = f.svc.SendTurn(ctx, alice, TurnRequest{Message: "again"})
	require.NoError(t, err)

	cleared, err := f.svc.ClearSession(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, cleared)

	msgs, err := f.svc.ListMessages(ctx, "alice", cleared)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, f.history.Len("alice"))

	sessions, err := f.svc.ListSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, cleared, sessions[0].ID)

	_, err = f.svc.ClearSession(ctx, "bob", cleared)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStartAndDeleteSession(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	sess, err := f.svc.StartSession(ctx, "alice", "  ")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Title)

	_, err = f.svc.SendTurn(ctx, alice, TurnRequest{Message: "hi", SessionID: sess.ID})
	require.NoError(t, err)

	assert.True(t, apperr.Is(f.svc.DeleteSession(ctx, "bob", sess.ID), apperr.KindNotFound))
	require.NoError(t, f.svc.DeleteSession(ctx, "alice", sess.ID))
	assert.Equal(t, 0, f.history.Len("alice"))

	_, err = f.svc.ListMessages(ctx, "alice", sess.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	sid, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, "alice", sid, model.RoleSystem, "nope")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	msg, err := f.svc.AppendMessage(ctx, "alice", sid, model.RoleUser, "typed offline")
	require.NoError(t, err)
	assert.Equal(t, sid, msg.SessionID)

	_, err = f.svc.AppendMessage(ctx, "bob", sid, model.RoleUser, "intruder")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentTurnsSameOwner(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SendTurn(ctx, alice, TurnRequest{Message: fmt.Sprintf("parallel %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sid, err := f.svc.DefaultSession(ctx, "alice")
	require.NoError(t, err)
	msgs, err := f.svc.ListMessages(ctx, "alice", sid)
	require.NoError(t, err)
	require.Len(t, msgs, 16)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, model.RoleUser, msgs[i].Role)
		assert.Equal(t, "echo: "+msgs[i].Content, msgs[i+1].Content, "turns never interleave")
	}

	sessions, err := f.svc.ListSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
