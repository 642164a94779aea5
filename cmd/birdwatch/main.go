package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alucardeht/birdwatch-mcp/internal/config"
	"github.com/alucardeht/birdwatch-mcp/internal/logger"
	"github.com/alucardeht/birdwatch-mcp/pkg/version"
)

// errCallFailed is returned by `call` after the failure envelope has already
// been printed.
var errCallFailed = errors.New("invocation failed")

type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "birdwatch",
		Short: "MCP server exposing read-only X (Twitter) tools",
		Long: `birdwatch serves X (Twitter) search, user lookup, timeline and sentiment tools
to MCP clients over stdio.

Run without a subcommand to start the server. Configuration is read from the
optional --config YAML file and then from environment variables; the bearer
token comes from TWITTER_BEARER_TOKEN.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML config file")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.toolsCmd())
	root.AddCommand(c.callCmd())

	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(logger.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	c.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCallFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
