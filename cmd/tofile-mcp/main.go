// Command tofile-mcp serves the tofile write tools over MCP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/tofile"
	"github.com/deixis/tofile/internal/capture"
	"github.com/deixis/tofile/internal/config"
	tomcp "github.com/deixis/tofile/internal/mcp"
	"github.com/deixis/tofile/internal/metrics"
	"github.com/deixis/tofile/internal/receipt"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	var (
		httpAddr     string
		configPath   string
		receiptsDir  string
		instructions bool
	)

	rootCmd := &cobra.Command{
		Use:          "tofile-mcp",
		Short:        "Serve the tofile write tools over MCP",
		Version:      tofile.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), tomcp.Instructions)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return serve(ctx, log, httpAddr, configPath, receiptsDir)
		},
	}
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&receiptsDir, "receipts", "", "directory for receipts (default: a temp directory)")
	rootCmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("tofile-mcp failed")
		os.Exit(1)
	}
}

func serve(ctx context.Context, log zerolog.Logger, httpAddr, configPath, receiptsDir string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if lvl := cfg.Level(); lvl != zerolog.Disabled {
		log = log.Level(lvl)
	}

	capLog := log.With().Str("component", "capture").Logger()
	c := &capture.Capturer{
		Mode:     cfg.Mode(),
		MaxInput: cfg.MaxInputBytes(),
		Log:      &capLog,
	}

	store := receipt.NewLRUStore(64, receipt.NewDiskStore(receiptsDir))

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	server := tomcp.NewServer(c, store, workspace,
		tomcp.WithMetrics(rec),
		tomcp.WithLogger(log),
	)

	if httpAddr != "" {
		return serveHTTP(ctx, log, server, reg, httpAddr)
	}
	log.Info().Str("workspace", workspace).Msg("serving MCP on stdio")
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, log zerolog.Logger, server *mcpsdk.Server, reg *prometheus.Registry, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
