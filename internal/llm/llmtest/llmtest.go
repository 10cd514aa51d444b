// Package llmtest provides a scripted LLM for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/vox-os/vox-memory/internal/llm"
)

// Call is one recorded Chat invocation.
type Call struct {
	System   string
	Messages []llm.Message
}

// Fake answers Chat calls with Respond, or Reply when Respond is nil.
type Fake struct {
	Reply   string
	Err     error
	Respond func(system string, messages []llm.Message) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Chat(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{System: systemPrompt, Messages: append([]llm.Message(nil), messages...)})
	f.mu.Unlock()

	if f.Respond != nil {
		return f.Respond(systemPrompt, messages)
	}
	return f.Reply, f.Err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsWithSystem counts calls whose system prompt contains substr.
func (f *Fake) CallsWithSystem(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.System, substr) {
			n++
		}
	}
	return n
}
