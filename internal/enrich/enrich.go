// Package enrich decides whether text is worth remembering and compresses long memories.
package enrich

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/vox-os/vox-memory/internal/llm"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
)

// DefaultSummaryThreshold is the text length above which a summary is requested.
const DefaultSummaryThreshold = 300

// ClassifierPrompt and SummarizerPrompt are the fixed instructions sent with each call.
const (
	ClassifierPrompt = "You classify user statements into LONG-TERM memory categories. " +
		"Only classify stable, important information. Output exactly one category or 'none'. " +
		"Categories: identity, preferences, relationships, biography, projects, work, knowledge, emotional-traits."

	SummarizerPrompt = "Summarize this into one short, factual sentence that captures the core information. " +
		"No creativity, no interpretation."
)

// Classifier maps text to a long-term memory category.
type Classifier struct {
	llm llm.LLM
}

func NewClassifier(client llm.LLM) *Classifier {
	return &Classifier{llm: client}
}

// Classify returns nil when the text is not memorable or classification failed.
func (c *Classifier) Classify(ctx context.Context, text string) *model.Category {
	if c == nil || c.llm == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	out, err := c.llm.Chat(ctx, ClassifierPrompt, []llm.Message{{Role: "user", Content: text}})
	if err != nil {
		logger.Warn("classification failed", "error", err)
		metrics.RecordDependencyFailure(metrics.DepClassifier)
		return nil
	}

	label := cleanLabel(out)
	if label == "" || label == "none" {
		return nil
	}
	cat, err := model.ParseCategory(label)
	if err != nil {
		logger.Warn("classifier returned unknown category", "output", out)
		return nil
	}
	return &cat
}

// cleanLabel strips quotes and trailing punctuation the model sometimes adds.
func cleanLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, " \t\n\"'`.!,;:*")
}

// Summarizer compresses long memory text into one sentence.
type Summarizer struct {
	llm       llm.LLM
	threshold int
}

func NewSummarizer(client llm.LLM, threshold int) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	return &Summarizer{llm: client, threshold: threshold}
}

var errEmptySummary = errors.New("empty summary")

// Summarize returns text unchanged when it is short or the summary call fails.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	if s == nil || s.llm == nil || utf8.RuneCountInString(text) <= s.threshold {
		return text
	}

	out, err := s.llm.Chat(ctx, SummarizerPrompt, []llm.Message{{Role: "user", Content: text}})
	if err == nil && strings.TrimSpace(out) == "" {
		err = errEmptySummary
	}
	if err != nil {
		logger.Warn("summarization failed", "error", err)
		metrics.RecordDependencyFailure(metrics.DepSummarizer)
		return text
	}
	return strings.TrimSpace(out)
}
