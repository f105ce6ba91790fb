package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/harun/toolwire/pkg/mcpclient"
)

var (
	callArgs string
	callRaw  bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool directly",
	Long: `Call one tool with JSON arguments and print its normalized output.

Example:
  toolwire call read_file --args '{"path": "sample.txt"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

var readCmd = &cobra.Command{
	Use:   "read [path]",
	Short: "Read a file through the server's file tool",
	Long: `Read a file through the first file-reading tool the server offers
(read_file, readfile or read_file_mcp).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

func init() {
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "{}", "tool arguments as a JSON object")
	callCmd.Flags().BoolVar(&callRaw, "raw", false, "print the raw tool payload as JSON")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(readCmd)
}

// parseArgs decodes a JSON object given on the command line
func parseArgs(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(s) || !gjson.Parse(s).IsObject() {
		return nil, fmt.Errorf("arguments must be a JSON object, got %s", s)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return args, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	toolArgs, err := parseArgs(callArgs)
	if err != nil {
		return err
	}

	sessions := newSessions()
	defer sessions.Close()

	sess, err := connect(cmd.Context(), sessions)
	if err != nil {
		return err
	}

	result, err := sess.Client.CallTool(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}

	return printResult(cmd, result)
}

func printResult(cmd *cobra.Command, result mcpclient.InvocationResult) error {
	out := cmd.OutOrStdout()
	if callRaw {
		data, err := json.MarshalIndent(result.Raw, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, result.Content)
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	path := appConfig.Agent.DefaultFilePath
	if len(args) == 1 {
		path = args[0]
	}

	sessions := newSessions()
	defer sessions.Close()

	sess, err := connect(cmd.Context(), sessions)
	if err != nil {
		return err
	}

	// ReadFile picks from the cached catalog
	if _, err := sess.Client.DiscoverTools(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), mcpclient.ReadFile(cmd.Context(), sess.Client, path))
	return nil
}
