package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/vox-os/vox-memory/internal/llm"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/model"
	"github.com/vox-os/vox-memory/internal/retrieval"
	"github.com/vox-os/vox-memory/internal/textproc"
)

// Persona is the fixed first system instruction of every completion.
const Persona = `You are Vox, an OS-integrated assistant. You maintain and use the conversational context across turns. ` +
	`If the user sends a short follow-up like "in software" or "that one", interpret it relative to the most recent topic. ` +
	`Format with short paragraphs, bullets, and code blocks when helpful. Be concise.`

const (
	coreHeader     = "Core memories about the user:"
	relevantHeader = "Relevant long-term memory (most similar first):"

	// DefaultCharBudget bounds the combined memory blocks.
	DefaultCharBudget = 4000
	// minExcerpt is the smallest remainder worth filling with a cut-down entry.
	minExcerpt = 100
)

// MemorySource is the part of the memory service the assembler reads from.
type MemorySource interface {
	Core(ctx context.Context, owner string) ([]model.Memory, error)
	Retrieve(ctx context.Context, caller model.Caller, query string, k int) retrieval.Result
}

// Assembly is the prompt for one turn and the memories that went into it.
type Assembly struct {
	Messages []llm.Message `json:"messages"`
	Core     []model.Memory `json:"core"`
	// Relevant holds the retrieved memories that made it into the prompt.
	Relevant []model.Memory `json:"relevant"`
	Tier     string         `json:"tier"`
	// Used counts memory characters spent against the budget.
	Used int `json:"used"`
}

type Assembler struct {
	memory MemorySource
	budget int
	k      int
}

func NewAssembler(memory MemorySource, charBudget, k int) *Assembler {
	if charBudget <= 0 {
		charBudget = DefaultCharBudget
	}
	return &Assembler{memory: memory, budget: charBudget, k: k}
}

// RetrievalQuery joins the latest user turn of rolling with message.
func RetrievalQuery(rolling []model.Entry, message string) string {
	var parts []string
	for i := len(rolling) - 1; i >= 0; i-- {
		if rolling[i].Role == model.RoleUser {
			if rolling[i].Content != "" {
				parts = append(parts, rolling[i].Content)
			}
			break
		}
	}
	if message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, "\n")
}

// Assemble builds persona, core block, relevant block, rolling history and
// the new message, in that order. Empty memory blocks are left out and a
// memory listed under relevant is not repeated under core. A core lookup
// failure only drops the core block.
func (a *Assembler) Assemble(ctx context.Context, caller model.Caller, rolling []model.Entry, message string) (*Assembly, error) {
	var (
		core []model.Memory
		res  retrieval.Result
		g    errgroup.Group
	)
	g.Go(func() error {
		mems, err := a.memory.Core(ctx, caller.UserID)
		if err != nil {
			logger.Warn("core memories unavailable", "owner", caller.UserID, "error", err)
			return nil
		}
		core = mems
		return nil
	})
	g.Go(func() error {
		res = a.memory.Retrieve(ctx, caller, RetrievalQuery(rolling, message), a.k)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Assembly{Tier: res.Tier}
	p := &packer{budget: a.budget}

	// Relevant entries claim the budget first. The block is still rendered
	// after core.
	var relevantLines []string
	rendered := make(map[string]bool, len(res.Memories))
	for _, m := range res.Memories {
		line, ok := p.add("- " + m.Text)
		if !ok {
			break
		}
		relevantLines = append(relevantLines, line)
		out.Relevant = append(out.Relevant, m)
		rendered[m.ID] = true
	}

	var coreLines []string
	for _, m := range core {
		if rendered[m.ID] {
			continue
		}
		line, ok := p.add(coreLine(m))
		if !ok {
			break
		}
		coreLines = append(coreLines, line)
		out.Core = append(out.Core, m)
	}
	out.Used = p.used

	msgs := []llm.Message{{Role: string(model.RoleSystem), Content: Persona}}
	if len(coreLines) > 0 {
		msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: coreHeader + "\n" + strings.Join(coreLines, "\n")})
	}
	if len(relevantLines) > 0 {
		msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: relevantHeader + "\n" + strings.Join(relevantLines, "\n")})
	}
	for _, e := range rolling {
		msgs = append(msgs, llm.Message{Role: string(e.Role), Content: e.Content})
	}
	msgs = append(msgs, llm.Message{Role: string(model.RoleUser), Content: message})
	out.Messages = msgs
	return out, nil
}

func coreLine(m model.Memory) string {
	if m.Category == nil {
		return "- " + m.Display()
	}
	return "- (" + m.CategoryName() + ") " + m.Display()
}

// packer fills a character budget greedily. The first entry that does not
// fit is excerpted when enough room remains, and closes the budget.
type packer struct {
	budget int
	used   int
	full   bool
}

func (p *packer) add(line string) (string, bool) {
	if p.full {
		return "", false
	}
	n := utf8.RuneCountInString(line)
	if p.used+n <= p.budget {
		p.used += n
		return line, true
	}
	p.full = true
	remaining := p.budget - p.used
	if remaining < minExcerpt {
		return "", false
	}
	p.used = p.budget
	return textproc.Truncate(line, remaining-len(textproc.Ellipsis)), true
}
