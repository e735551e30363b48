package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("transport") {
			cfg.Server.Transport, _ = flags.GetString("transport")
		}
		if flags.Changed("addr") {
			cfg.Server.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("sse-endpoint") {
			cfg.Server.SSEEndpoint, _ = flags.GetString("sse-endpoint")
		}

		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc)

		mcpServer := server.NewMCPServer(svc, cfg.DataFile, log)

		log.Info("Starting MCP server", "transport", cfg.Server.Transport)
		switch cfg.Server.Transport {
		case "stdio":
			err = mcpServer.Run(ctx)
		case "sse":
			err = mcpServer.RunSSE(ctx, cfg.Server.Addr, cfg.Server.SSEEndpoint)
		default:
			return fmt.Errorf("unknown transport: %s (expected: stdio or sse)", cfg.Server.Transport)
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		log.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("transport", "stdio", "Transport to use: stdio or sse")
	serveCmd.Flags().String("addr", ":8080", "Address to listen on when using SSE transport")
	serveCmd.Flags().String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
}
