package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeTransport struct {
	status int
	body   []byte
	calls  int
	req    []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	f.req = b
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader(f.body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem("persona", []Message{
		{Role: "system", Content: "memory block"},
		{Role: "assistant", Content: "dangling"},
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "again"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "bye"},
	})

	if system != "persona\n\nmemory block" {
		t.Errorf("unexpected system prompt %q", system)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d: %+v", len(turns), turns)
	}
	if turns[0].Role != "user" || turns[0].Content != "hi\n\nagain" {
		t.Errorf("expected merged first user turn, got %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[2].Role != "user" {
		t.Errorf("roles should alternate: %+v", turns)
	}
}

func TestClaudeChat(t *testing.T) {
	fake := &fakeTransport{
		status: 200,
		body:   []byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"Your favorite color is blue."}],"model":"claude-test","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`),
	}
	c := newClaude("test-key", "claude-test", 256, &http.Client{Transport: fake})

	reply, err := c.Chat(context.Background(), "persona", []Message{
		{Role: "system", Content: "Relevant long-term memory"},
		{Role: "user", Content: "What's my favorite color?"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Your favorite color is blue." {
		t.Errorf("unexpected reply %q", reply)
	}

	var sent struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(fake.req, &sent); err != nil {
		t.Fatalf("decode request: %v\nbody=%s", err, fake.req)
	}
	if sent.Model != "claude-test" || sent.MaxTokens != 256 {
		t.Errorf("unexpected model params: %+v", sent)
	}
	if len(sent.System) != 1 || !strings.Contains(sent.System[0].Text, "Relevant long-term memory") {
		t.Errorf("system-role message should be lifted into system: %+v", sent.System)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", sent.Messages)
	}
}

func TestClaudeChatNoUserMessage(t *testing.T) {
	fake := &fakeTransport{status: 200}
	c := newClaude("test-key", "", 0, &http.Client{Transport: fake})

	if _, err := c.Chat(context.Background(), "persona", nil); err == nil {
		t.Error("expected error without a user message")
	}
	if fake.calls != 0 {
		t.Errorf("expected no request, got %d", fake.calls)
	}
}

func TestOpenAICompatibleChat(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test", MaxTokens: 64})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	reply, err := c.Chat(context.Background(), "persona", []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("unexpected reply %q", reply)
	}
	if got.Model != "gpt-test" || got.MaxTokens != 64 {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestOpenAICompatibleChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := newOpenAICompatible("", srv.URL, "m", 0, nil)
	if _, err := c.Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Error("expected error on 500")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "palm"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(Config{Provider: "claude"}); err == nil {
		t.Error("expected error for claude without key")
	}
}

type countingLLM struct{ calls int }

func (c *countingLLM) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	c.calls++
	return "ok", nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingLLM{}
	if RateLimited(inner, 0, 0) != LLM(inner) {
		t.Error("zero rate should return the inner client")
	}

	limited := RateLimited(inner, 1, 1)
	if _, err := limited.Chat(context.Background(), "", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := limited.Chat(ctx, "", nil); err == nil {
		t.Error("expected second call to exceed the deadline while waiting")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}
