package main

import (
	"fmt"

	"github.com/jonathan/cv-ranker/internal/server"
	"github.com/jonathan/cv-ranker/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes search, upload, status and embedding endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to server.port from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer a.Close()

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(server.Config{
		Port:           port,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      ratelimit.NewConfig(cfg.RateLimit),
	}, a.searcher, a.catalog, a.logger)

	return srv.Start()
}
