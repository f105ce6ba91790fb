package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/toolwire/internal/config"
	"github.com/harun/toolwire/internal/observability"
	"github.com/harun/toolwire/internal/tracing"
	"github.com/harun/toolwire/pkg/composer"
	"github.com/harun/toolwire/pkg/mcpclient"
	"github.com/harun/toolwire/pkg/planner"
	"github.com/harun/toolwire/pkg/session"
)

// State is a step of the agent loop
type State string

const (
	StateIdle               State = "idle"
	StateConnecting         State = "connecting"
	StateDiscovering        State = "discovering"
	StatePlanning           State = "planning"
	StateResolvingArguments State = "resolving_arguments"
	StateInvoking           State = "invoking"
	StateComposing          State = "composing"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// Request is one user request against a tool server
type Request struct {
	Transport mcpclient.Kind
	Endpoint  string
	Text      string
	// RequiredTool forces the planner's choice when set
	RequiredTool string
}

// Config holds runner configuration
type Config struct {
	Sessions *session.Manager
	Provider Provider
	Agent    config.AgentConfig
	History  *History
	Logger   *zerolog.Logger
}

// Runner drives requests through the agent loop
type Runner struct {
	sessions *session.Manager
	provider Provider
	planner  *planner.Planner
	composer *composer.Composer
	history  *History
	agent    config.AgentConfig
	logger   zerolog.Logger

	runMu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("completion provider is required")
	}

	history := cfg.History
	if history == nil {
		history = NewHistory(cfg.Agent.HistorySize)
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Runner{
		sessions: cfg.Sessions,
		provider: cfg.Provider,
		planner:  planner.NewPlanner(cfg.Provider, cfg.Agent.DefaultFilePath),
		composer: composer.New(cfg.Provider, cfg.Agent.SummaryWords),
		history:  history,
		agent:    cfg.Agent,
		logger:   logger.With().Str("component", "agent").Logger(),
		state:    StateIdle,
	}, nil
}

// History returns the run history
func (r *Runner) History() *History {
	return r.history
}

// UpdateAgentConfig swaps the agent settings used by later runs. It
// waits for a run in progress. The history keeps its original size.
func (r *Runner) UpdateAgentConfig(cfg config.AgentConfig) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.agent = cfg
	r.planner = planner.NewPlanner(r.provider, cfg.DefaultFilePath)
	r.composer = composer.New(r.provider, cfg.SummaryWords)
}

// State returns the step the loop is currently in
func (r *Runner) State() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// Run executes one request. The returned entry is also stored in the
// history. Only a connection failure returns an error, together with an
// entry in StateFailed.
func (r *Runner) Run(ctx context.Context, req Request) (*HistoryEntry, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("request cannot be empty")
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	ctx = tracing.NewRunContext(ctx)
	ctx, span := tracing.StartSpan(
		ctx,
		"toolwire.agent",
		"agent.run",
		attribute.String("transport", string(req.Transport)),
		attribute.String("endpoint", req.Endpoint),
	)
	defer span.End()

	start := time.Now()
	entry := &HistoryEntry{
		RunID:         tracing.GetRunID(ctx),
		Timestamp:     time.Now().UTC().Format(TimestampLayout),
		Transport:     req.Transport,
		Endpoint:      req.Endpoint,
		Request:       req.Text,
		ArgumentsUsed: map[string]any{},
	}
	defer func() {
		r.history.Add(*entry)
		observability.RecordAgentRun(string(entry.State), time.Since(start))
	}()

	r.setState(StateIdle)
	logger := tracing.Logger(ctx, r.logger)

	r.transition(&logger, StateConnecting)
	sess, err := r.sessions.Acquire(ctx, req.Transport, req.Endpoint)
	if err != nil {
		entry.ToolError = err.Error()
		entry.FinalResponse = fmt.Sprintf("Failed to connect to the MCP server at %s: %v", req.Endpoint, err)
		entry.State = StateFailed
		r.transition(&logger, StateFailed)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Agent run aborted")
		return entry, fmt.Errorf("connect: %w", err)
	}

	ctx = tracing.BindSession(ctx, sess.ID)
	logger = tracing.Logger(ctx, r.logger)

	r.transition(&logger, StateDiscovering)
	catalog, err := sess.Client.DiscoverTools(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Tool discovery failed, continuing without tools")
		catalog = nil
	}
	span.SetAttributes(attribute.Int("tools", len(catalog)))

	required := req.RequiredTool
	if required == "" && r.agent.RequireReadTool {
		if tool, ok := FindReadTool(catalog); ok {
			required = tool.Name
		}
	}

	r.transition(&logger, StatePlanning)
	plan := r.planner.Plan(ctx, req.Text, catalog, required)
	entry.Plan = plan

	var output string
	if plan.HasTool() {
		output = r.invoke(ctx, &logger, sess.Client, catalog, entry)
	}

	r.transition(&logger, StateComposing)
	reasoning := entry.Plan.Reasoning
	if entry.ToolError != "" {
		reasoning = strings.TrimSpace(fmt.Sprintf("%s (tool error: %s)", reasoning, entry.ToolError))
	}
	entry.FinalResponse = r.composer.Compose(ctx, req.Text, entry.Plan.ToolName, output, reasoning)

	entry.State = StateDone
	r.transition(&logger, StateDone)

	logger.Info().
		Str("tool", entry.Plan.ToolName).
		Bool("tool_failed", entry.ToolError != "").
		Dur("duration", time.Since(start)).
		Msg("Agent run completed")

	return entry, nil
}

// invoke resolves arguments and calls the planned tool, recording the
// outcome on entry. It returns the tool output, empty on failure.
func (r *Runner) invoke(ctx context.Context, logger *zerolog.Logger, client mcpclient.Client, catalog []mcpclient.ToolDescriptor, entry *HistoryEntry) string {
	name := entry.Plan.ToolName

	r.transition(logger, StateResolvingArguments)
	tool, ok := lookupTool(catalog, name)
	if !ok {
		entry.ToolError = fmt.Sprintf("Tool '%s' is not available.", name)
		entry.Plan.ToolName = ""
		return ""
	}

	args, err := ResolveArguments(&tool, entry.Plan.Arguments, r.agent.DefaultFilePath)
	if err != nil {
		logger.Warn().Err(err).Str("tool", name).Msg("Skipping tool invocation")
		entry.ToolError = err.Error()
		entry.Plan.ToolName = ""
		return ""
	}
	if err := ValidateArguments(&tool, args); err != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("arguments.violation", err.Error()))
		if r.agent.StrictArguments {
			logger.Warn().Err(err).Str("tool", name).Msg("Skipping tool invocation")
			entry.ToolError = err.Error()
			entry.Plan.ToolName = ""
			return ""
		}
		logger.Warn().Err(err).Str("tool", name).Msg("Arguments do not match the tool schema, calling anyway")
	}
	entry.ArgumentsUsed = args

	r.transition(logger, StateInvoking)
	start := time.Now()
	result, err := client.CallTool(ctx, name, args)
	observability.RecordToolCall(name, time.Since(start), err == nil && result.Success)

	if err != nil || !result.Success {
		entry.ToolError = invocationError(result, err)
		logger.Warn().Str("tool", name).Str("error", entry.ToolError).Msg("Tool invocation failed")
		return ""
	}

	entry.ToolResult = &result
	return result.Content
}

func invocationError(result mcpclient.InvocationResult, err error) string {
	switch {
	case result.Error != "":
		return result.Error
	case err != nil:
		return err.Error()
	default:
		return "Unknown error while invoking the tool."
	}
}

func lookupTool(catalog []mcpclient.ToolDescriptor, name string) (mcpclient.ToolDescriptor, bool) {
	for _, tool := range catalog {
		if tool.Name == name {
			return tool, true
		}
	}
	return mcpclient.ToolDescriptor{}, false
}

func (r *Runner) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

func (r *Runner) transition(logger *zerolog.Logger, s State) {
	r.setState(s)
	logger.Debug().Str("state", string(s)).Msg("Agent state")
}

// IsConnectionError reports whether err aborted a run
func IsConnectionError(err error) bool {
	return errors.Is(err, mcpclient.ErrNotConnected)
}
