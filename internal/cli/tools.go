package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harun/toolwire/pkg/mcpclient"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered by a tool server",
	Long: `Connect to the tool server and print every tool it advertises
together with its parameters.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, _ []string) error {
	sessions := newSessions()
	defer sessions.Close()

	sess, err := connect(cmd.Context(), sessions)
	if err != nil {
		return err
	}

	tools, err := sess.Client.DiscoverTools(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	printTools(cmd.OutOrStdout(), sess.Key.String(), tools)
	return nil
}

func printTools(w io.Writer, source string, tools []mcpclient.ToolDescriptor) {
	if len(tools) == 0 {
		fmt.Fprintf(w, "No tools available on %s\n", source)
		return
	}

	name := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	fmt.Fprintf(w, "%d tool(s) on %s\n\n", len(tools), source)
	for _, tool := range tools {
		name.Fprint(w, tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(w, "  %s", tool.Description)
		}
		fmt.Fprintln(w)

		required := make(map[string]bool, len(tool.InputSchema.Required))
		for _, r := range tool.InputSchema.Required {
			required[r] = true
		}

		for _, param := range tool.InputSchema.PropertyNames() {
			prop := tool.InputSchema.Properties[param]
			typ := prop.Type
			if typ == "" {
				typ = "string"
			}

			var notes []string
			if required[param] {
				notes = append(notes, "required")
			}
			if prop.HasDefault {
				notes = append(notes, fmt.Sprintf("default %v", prop.Default))
			}

			fmt.Fprintf(w, "    - %s (%s)", param, typ)
			if len(notes) > 0 {
				dim.Fprintf(w, " [%s]", strings.Join(notes, ", "))
			}
			if prop.Description != "" {
				fmt.Fprintf(w, ": %s", prop.Description)
			}
			fmt.Fprintln(w)
		}
	}
}
