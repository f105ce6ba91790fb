package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/toolwire/pkg/agent"
	"github.com/harun/toolwire/pkg/session"
)

var (
	runTool   string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run one request through the agent loop",
	Long: `Connect to the tool server, let the model pick a tool for the
request, call it and print the summarised answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTool, "tool", "", "force this tool instead of the model's choice")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "text", "output format (text, json, yaml)")

	rootCmd.AddCommand(runCmd)
}

// newRunner builds a runner from the loaded config
func newRunner(sessions *session.Manager) (*agent.Runner, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := agent.NewProvider(appConfig.AI)
	if err != nil {
		return nil, err
	}

	return agent.NewRunner(agent.Config{
		Sessions: sessions,
		Provider: provider,
		Agent:    appConfig.Agent,
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	switch runOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", runOutput)
	}

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

	entry, err := runner.Run(cmd.Context(), agent.Request{
		Transport:    kind,
		Endpoint:     ep,
		Text:         strings.Join(args, " "),
		RequiredTool: runTool,
	})
	if entry == nil {
		return err
	}

	if werr := writeEntry(cmd.OutOrStdout(), *entry, runOutput); werr != nil {
		return werr
	}
	return err
}

func writeEntry(w io.Writer, entry agent.HistoryEntry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entry); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, entry.FinalResponse)
		return err
	}
}
