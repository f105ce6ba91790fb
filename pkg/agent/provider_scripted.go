package agent

import (
	"context"
	"strings"
	"sync"
)

// ScriptedProvider replies from a fixed script. Queued replies are used in
// order; once they run out Respond answers, and without Respond the last
// reply repeats.
type ScriptedProvider struct {
	// Respond produces a reply when the queue is empty
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	replies []scriptedReply
	last    scriptedReply
	prompts []string
}

type scriptedReply struct {
	text string
	err  error
}

// NewScriptedProvider creates a provider that answers with replies in order
func NewScriptedProvider(replies ...string) *ScriptedProvider {
	p := &ScriptedProvider{}
	for _, r := range replies {
		p.replies = append(p.replies, scriptedReply{text: r})
	}
	return p
}

// NewOfflineProvider answers without a model: planning prompts select no
// tool and every other prompt gets a fixed note.
func NewOfflineProvider() *ScriptedProvider {
	return &ScriptedProvider{Respond: offlineReply}
}

func offlineReply(prompt string) (string, error) {
	if strings.Contains(prompt, "Return JSON only") {
		return `{"tool_name": null, "arguments": {}, "reasoning": "offline provider"}`, nil
	}
	return "Offline mode: no language model is configured, showing the raw tool output.", nil
}

// Fail queues an error reply
func (p *ScriptedProvider) Fail(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, scriptedReply{err: err})
	return p
}

// Name returns the provider name
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Complete returns the next scripted reply
func (p *ScriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	if len(p.replies) > 0 {
		reply := p.replies[0]
		p.replies = p.replies[1:]
		p.last = reply
		p.mu.Unlock()
		return reply.text, reply.err
	}
	respond, last := p.Respond, p.last
	p.mu.Unlock()

	if respond != nil {
		return respond(prompt)
	}
	return last.text, last.err
}

// Prompts returns every prompt seen so far
func (p *ScriptedProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}
