package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/docgraph"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect docgraph configuration",
	Long: `Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DOCGRAPH_*, GROQ_API_KEY, NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD)
3. .env file in the working directory
4. Config file (--config, ./docgraph.yaml or ~/.docgraph/docgraph.yaml)
5. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfgFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n", cfgFile)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "No configuration file found (defaults and environment only)")
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}

		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "docgraph.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		data, err := yaml.Marshal(docgraph.DefaultConfig())
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		header := "# docgraph configuration\n" +
			"# API keys are best supplied through GROQ_API_KEY / OPENAI_API_KEY / OPENROUTER_API_KEY.\n\n"
		if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
