// Package cli implements the docgraph command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brunobiangulo/docgraph"
	"github.com/brunobiangulo/docgraph/store"
)

var (
	cfgFile string
	verbose bool
	timeout time.Duration
)

// version is overridden at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "Turn documents into a knowledge graph and ask questions about them",
	Long: `docgraph extracts (subject, predicate, object) triplets from documents
with a generative model, merges them into a graph store, and answers
questions grounded in a document's text.

Supported inputs: pdf, docx, xlsx, pptx, txt, md.
Graph backends: neo4j, sqlite, memory.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docgraph %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./docgraph.yaml or $HOME/.docgraph/docgraph.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.DurationVar(&timeout, "timeout", 30*time.Minute, "overall command timeout")
	pf.String("backend", "", "graph backend: neo4j, sqlite, memory")
	pf.String("sqlite-path", "", "SQLite graph file (sqlite backend)")
	pf.String("extraction-model", "", "model used for triplet extraction")
	pf.String("answering-model", "", "model used for question answering")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("graph.backend", pf.Lookup("backend"))
	_ = viper.BindPFlag("graph.path", pf.Lookup("sqlite-path"))
	_ = viper.BindPFlag("extraction.model", pf.Lookup("extraction-model"))
	_ = viper.BindPFlag("answering.model", pf.Lookup("answering-model"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig locates a config file when --config is not given and binds
// DOCGRAPH_* environment variables.
func initConfig() {
	viper.SetEnvPrefix("DOCGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		return
	}
	viper.SetConfigName("docgraph")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".docgraph"))
	}
	if err := viper.ReadInConfig(); err == nil {
		cfgFile = viper.ConfigFileUsed()
	}
}

func setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig reads the config file and environment, then applies flag
// overrides. It does not validate.
func loadConfig() (docgraph.Config, error) {
	cfg, err := docgraph.ReadConfig(cfgFile)
	if err != nil {
		return docgraph.Config{}, err
	}
	if v := viper.GetString("graph.backend"); v != "" {
		cfg.Graph.Backend = v
	}
	if v := viper.GetString("graph.path"); v != "" {
		cfg.Graph.Path = v
	}
	if v := viper.GetString("extraction.model"); v != "" {
		cfg.Extraction.Model = v
	}
	if v := viper.GetString("answering.model"); v != "" {
		cfg.Answering.Model = v
	}
	return cfg, nil
}

// newEngine loads and validates configuration and builds an engine. With
// noGraph the graph store is replaced by an in-memory one, for commands
// that never touch the graph.
func newEngine(ctx context.Context, noGraph bool) (docgraph.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if noGraph {
		cfg.Graph.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return docgraph.New(ctx, cfg)
}

// openStore connects only the graph backend, for graph maintenance
// commands that need no model.
func openStore(ctx context.Context) (store.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Graph)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
