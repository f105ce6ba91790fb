package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/toolwire/internal/config"
	"github.com/harun/toolwire/internal/logger"
	"github.com/harun/toolwire/internal/tracing"
	"github.com/harun/toolwire/pkg/mcpclient"
	"github.com/harun/toolwire/pkg/session"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string

	transport string
	endpoint  string

	appConfig *config.Config
	appLogger *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "toolwire",
	Short: "Toolwire - MCP tool client and agent loop",
	Long: `Toolwire talks to MCP tool servers over websocket JSON-RPC, SSE or
plain HTTP routes. It lists and calls tools directly, or lets a language
model pick a tool for a request and summarise the result.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.toolwire/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the config")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "transport: websocket, sse or http (default from config)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "tool server endpoint (default from config)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// setup loads the config and installs the logger before any subcommand runs
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = logLevel
	}

	l, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := tracing.Setup(tracing.ProviderConfig{
		ServiceName:    cfg.MCP.ClientName,
		ServiceVersion: cfg.MCP.ClientVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	appConfig = cfg
	appLogger = l

	log.Debug().
		Str("command", cmd.Name()).
		Str("config", config.NewLoader(cfgFile).GetConfigPath()).
		Msg("Configuration loaded")
	return nil
}

func teardown(_ *cobra.Command, _ []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tracing.Shutdown(ctx)

	if appLogger != nil {
		_ = appLogger.Close()
	}
}

// target resolves the transport and endpoint from flags, falling back to the config
func target() (mcpclient.Kind, string, error) {
	name := transport
	if name == "" {
		name = appConfig.MCP.Transport
	}
	kind, err := mcpclient.ParseKind(name)
	if err != nil {
		return "", "", err
	}

	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = appConfig.MCP.Endpoint
	}
	if err := config.NewValidator().ValidateEndpoint(ep, string(kind)); err != nil {
		return "", "", err
	}
	return kind, ep, nil
}

// clientOptions maps the mcp config section onto transport options
func clientOptions(cfg config.MCPConfig) []mcpclient.Option {
	return []mcpclient.Option{
		mcpclient.WithClientInfo(cfg.ClientName, cfg.ClientVersion),
		mcpclient.WithRequestTimeout(cfg.RequestTimeoutDuration()),
		mcpclient.WithHTTPTimeout(cfg.HTTPTimeoutDuration()),
	}
}

func newSessions() *session.Manager {
	return session.NewWithOptions(clientOptions(appConfig.MCP)...)
}

// connect acquires a session on the configured target
func connect(ctx context.Context, sessions *session.Manager) (*session.Session, error) {
	kind, ep, err := target()
	if err != nil {
		return nil, err
	}
	return sessions.Acquire(ctx, kind, ep)
}

// watchConfig hands later edits of the config file to onChange until
// ctx ends. A missing file is not watched.
func watchConfig(ctx context.Context, onChange func(*config.Config)) {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		log.Debug().Str("config", path).Msg("No config file to watch")
		return
	}
	if err := loader.Watch(ctx, onChange); err != nil {
		log.Warn().Err(err).Msg("Config reload disabled")
	}
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
