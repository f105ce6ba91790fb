package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/toolwire/internal/config"
	"github.com/harun/toolwire/pkg/gateway"
)

var (
	serveHost string
	servePort int
	serveRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo tool server",
	Long: `Run a tool server offering read_file_mcp and read_file on every
transport at once: /ws (websocket JSON-RPC), /sse with /message, and the
plain HTTP routes such as /tools/list and /call_tool.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "directory served by read_file (default from config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig.Gateway
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveRoot != "" {
		cfg.Root = serveRoot
	}

	srv, err := gateway.NewServer(gateway.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Root:        cfg.Root,
		DefaultPath: appConfig.Agent.DefaultFilePath,
		PageSize:    cfg.PageSize,
		Version:     version,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}
	started := time.Now()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %d tool(s) on %s\n", len(srv.Tools()), srv.Addr())
	fmt.Fprintf(out, "  websocket  ws://%s/ws\n", srv.Addr())
	fmt.Fprintf(out, "  sse        http://%s/sse\n", srv.Addr())
	fmt.Fprintf(out, "  http       http://%s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the listener and tool set are bound at start
	watchConfig(ctx, func(next *config.Config) {
		if next.Gateway != appConfig.Gateway || next.Agent.DefaultFilePath != appConfig.Agent.DefaultFilePath {
			log.Warn().Str("addr", srv.Addr()).Msg("Tool server settings changed, restart serve to apply them")
		}
	})
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}

	log.Info().Str("uptime", formatDuration(time.Since(started))).Msg("Tool server exited")
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
