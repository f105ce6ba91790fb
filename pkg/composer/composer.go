// Package composer turns a request and a tool result into the final reply.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/toolwire/internal/observability"
)

// DefaultSummaryWords is the word count requested from the model
const DefaultSummaryWords = 50

// Completer turns a prompt into a single text completion
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Composer writes the user-facing answer
type Composer struct {
	completer Completer
	words     int
}

// New creates a composer. words <= 0 uses DefaultSummaryWords.
func New(completer Completer, words int) *Composer {
	if words <= 0 {
		words = DefaultSummaryWords
	}
	return &Composer{completer: completer, words: words}
}

// Compose asks for a summary of the request and tool output. It never
// fails: when the completion service is unavailable the request and raw
// output are returned with a note. Non-empty tool output is always appended
// verbatim below the summary.
func (c *Composer) Compose(ctx context.Context, request, toolName, toolOutput, reasoning string) string {
	summary, err := c.summarize(ctx, request, toolName, toolOutput, reasoning)
	if err != nil {
		observability.RecordComposerFallback()
		log.Warn().Err(err).Str("tool", toolName).Msg("Composer falling back to raw output")
		return Fallback(request, toolName, toolOutput, err)
	}

	if toolOutput == "" {
		return summary
	}

	label := toolName
	if label == "" {
		label = "tool"
	}
	return fmt.Sprintf("%s\n\n--- File Content (%s) ---\n%s", summary, label, toolOutput)
}

func (c *Composer) summarize(ctx context.Context, request, toolName, toolOutput, reasoning string) (string, error) {
	if c.completer == nil {
		return "", errors.New("no completion provider configured")
	}

	out, err := c.completer.Complete(ctx, c.Prompt(request, toolName, toolOutput, reasoning))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Prompt renders the composition prompt
func (c *Composer) Prompt(request, toolName, toolOutput, reasoning string) string {
	return fmt.Sprintf(
		"Compose a helpful response for the user based on the context below. "+
			"Write exactly %d words (no more, no less) summarising the topic, "+
			"and highlight key details from the tool output when available.\n\n"+
			"%s\n\nRespond with plain text only.",
		c.words, Context(request, toolName, toolOutput, reasoning))
}

// Context assembles the blocks the model sees
func Context(request, toolName, toolOutput, reasoning string) string {
	parts := []string{"User request: " + request}
	switch {
	case toolName != "" && toolOutput != "":
		parts = append(parts, fmt.Sprintf("Tool '%s' output:\n%s", toolName, toolOutput))
	case toolName != "":
		parts = append(parts, fmt.Sprintf("Tool '%s' returned no content.", toolName))
	}
	if reasoning != "" {
		parts = append(parts, "Tool selection reasoning: "+reasoning)
	}
	return strings.Join(parts, "\n\n")
}

// Fallback is the reply used when no summary could be produced
func Fallback(request, toolName, toolOutput string, cause error) string {
	var b strings.Builder
	b.WriteString(request)
	if toolOutput != "" {
		fmt.Fprintf(&b, "\n\nTool '%s' output:\n%s", toolName, toolOutput)
	}
	fmt.Fprintf(&b, "\n\n(Note: failed to contact language model: %v)", cause)
	return b.String()
}
