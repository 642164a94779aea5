package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alucardeht/birdwatch-mcp/internal/config"
	"github.com/alucardeht/birdwatch-mcp/internal/mcp"
	"github.com/alucardeht/birdwatch-mcp/internal/telemetry"
	"github.com/alucardeht/birdwatch-mcp/pkg/version"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}
}

func (c *cli) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, c.cfg.OTelEndpoint)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	a, err := newApp(c.cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.configPath != "" {
		watcher, err := config.Watch(c.configPath, config.DefaultReloadWindow, config.ApplyLogLevel)
		if err != nil {
			log.Warn("config reload disabled", "path", c.configPath, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	log.Info("starting", "name", version.Name, "version", version.Version, "pid", os.Getpid())

	server := mcp.NewServer(a.dispatcher)
	return server.Serve(ctx, mcp.StdioTransport(os.Stdin, os.Stdout))
}
