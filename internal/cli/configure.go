package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/toolwire/internal/config"
)

var (
	initForce    bool
	initProvider string
	initAPIKey   string
)

var configureCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default values. Transport and
endpoint flags, --provider and --api-key are written into it.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configureCmd.Flags().StringVar(&initProvider, "provider", "", "completion provider (openai, anthropic, scripted)")
	configureCmd.Flags().StringVar(&initAPIKey, "api-key", "", "completion provider API key")

	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	configPath := loader.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = appConfig.DataDir
	if transport != "" {
		cfg.MCP.Transport = transport
	}
	if endpoint != "" {
		cfg.MCP.Endpoint = endpoint
	}
	if initProvider != "" {
		cfg.AI.Provider = initProvider
		if initProvider == "anthropic" {
			cfg.AI.Model = "claude-3-5-haiku-latest"
		}
	}
	if initAPIKey != "" {
		cfg.AI.APIKey = initAPIKey
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}

	// Save configuration
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", configPath)
	return nil
}
