package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the connection to the tool server",
	Long:  `Connect to the configured tool server and report how many tools it offers.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	kind, ep, err := target()
	if err != nil {
		return err
	}

	sessions := newSessions()
	defer sessions.Close()

	start := time.Now()
	sess, err := sessions.Acquire(cmd.Context(), kind, ep)
	if err != nil {
		color.New(color.FgRed).Fprintln(out, "Status: unreachable")
		fmt.Fprintf(out, "Endpoint: %s (%s)\n", ep, kind)
		return err
	}

	tools, err := sess.Client.DiscoverTools(cmd.Context())
	elapsed := time.Since(start)

	color.New(color.FgGreen).Fprintln(out, "Status: connected")
	fmt.Fprintf(out, "Endpoint: %s (%s)\n", ep, kind)
	fmt.Fprintf(out, "Session: %s\n", sess.ID)
	if err != nil {
		fmt.Fprintf(out, "Tools: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Tools: %d\n", len(tools))
	}
	fmt.Fprintf(out, "Latency: %s\n", elapsed.Round(time.Millisecond))
	return nil
}
