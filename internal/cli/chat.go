package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/toolwire/internal/config"
	"github.com/harun/toolwire/pkg/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive agent session",
	Long: `Read requests line by line and answer each through the agent loop.

Commands:
  /history            list recent runs
  /show <n>           print run n (1 is the latest)
  /save <n> <file>    write the answer of run n to a file
  /export <file>      write the whole history as YAML
  /tool [name]        force a tool for later requests, or clear it
  /quit               leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatSession holds the state of one interactive session
type chatSession struct {
	runner *agent.Runner
	req    agent.Request
	out    io.Writer
}

func runChat(cmd *cobra.Command, _ []string) error {
	kind, ep, err := target()
	if err != nil {
		return err
	}

	sessions := newSessions()
	defer sessions.Close()

	runner, err := newRunner(sessions)
	if err != nil {
		return err
	}

	if appConfig.Metrics.Enabled {
		stopMetrics := serveMetrics(appConfig.Metrics.Addr)
		defer stopMetrics()
	}

	watchCtx, stopWatch := context.WithCancel(cmd.Context())
	defer stopWatch()
	started := *appConfig
	watchConfig(watchCtx, func(cfg *config.Config) {
		runner.UpdateAgentConfig(cfg.Agent)
		if cfg.MCP != started.MCP || cfg.AI != started.AI {
			log.Warn().Msg("Transport and model settings apply after chat restarts")
		}
	})

	chat := &chatSession{
		runner: runner,
		req:    agent.Request{Transport: kind, Endpoint: ep},
		out:    cmd.OutOrStdout(),
	}

	color.New(color.Bold).Fprintf(chat.out, "Connected to %s %s. Type /quit to leave.\n", kind, ep)
	return chat.loop(cmd, cmd.InOrStdin())
}

func (c *chatSession) loop(cmd *cobra.Command, in io.Reader) error {
	prompt := color.New(color.FgGreen, color.Bold)
	scanner := bufio.NewScanner(in)

	for {
		prompt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := c.command(line); quit {
				return nil
			}
			continue
		}

		req := c.req
		req.Text = line
		entry, err := c.runner.Run(cmd.Context(), req)
		if entry != nil {
			fmt.Fprintln(c.out, entry.FinalResponse)
		} else if err != nil {
			color.New(color.FgRed).Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// command handles a slash command and reports whether to quit
func (c *chatSession) command(line string) bool {
	fields := strings.Fields(line)
	history := c.runner.History()
	warn := color.New(color.FgYellow)

	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/history":
		entries := history.List()
		if len(entries) == 0 {
			fmt.Fprintln(c.out, "No runs yet")
			return false
		}
		for i, e := range entries {
			tool := e.Plan.ToolName
			if tool == "" {
				tool = "-"
			}
			fmt.Fprintf(c.out, "%2d. [%s] %s  tool=%s state=%s\n", i+1, e.Timestamp, e.Request, tool, e.State)
		}

	case "/show":
		entry, ok := c.entry(fields)
		if !ok {
			return false
		}
		if err := writeEntry(c.out, entry, "yaml"); err != nil {
			warn.Fprintf(c.out, "Error: %v\n", err)
		}

	case "/save":
		if len(fields) != 3 {
			warn.Fprintln(c.out, "Usage: /save <n> <file>")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			warn.Fprintf(c.out, "Invalid run number: %s\n", fields[1])
			return false
		}
		if err := writeFile(fields[2], func(w io.Writer) error { return history.Export(w, n-1) }); err != nil {
			warn.Fprintf(c.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(c.out, "Saved run %d to %s\n", n, fields[2])

	case "/export":
		if len(fields) != 2 {
			warn.Fprintln(c.out, "Usage: /export <file>")
			return false
		}
		if err := writeFile(fields[1], history.ExportYAML); err != nil {
			warn.Fprintf(c.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintf(c.out, "Exported %d run(s) to %s\n", history.Len(), fields[1])

	case "/tool":
		if len(fields) > 1 {
			c.req.RequiredTool = fields[1]
			fmt.Fprintf(c.out, "Using tool %s\n", fields[1])
		} else {
			c.req.RequiredTool = ""
			fmt.Fprintln(c.out, "Tool choice left to the model")
		}

	default:
		warn.Fprintf(c.out, "Unknown command: %s\n", fields[0])
	}

	return false
}

func (c *chatSession) entry(fields []string) (agent.HistoryEntry, bool) {
	n := 1
	if len(fields) > 1 {
		var err error
		if n, err = strconv.Atoi(fields[1]); err != nil {
			color.New(color.FgYellow).Fprintf(c.out, "Invalid run number: %s\n", fields[1])
			return agent.HistoryEntry{}, false
		}
	}
	entry, ok := c.runner.History().Get(n - 1)
	if !ok {
		color.New(color.FgYellow).Fprintf(c.out, "No run %d\n", n)
	}
	return entry, ok
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
