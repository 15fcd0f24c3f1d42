package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/server"
	"github.com/ziadkadry99/minutes/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	Long: `Ingests the notes, builds the indexes and serves the question API.
Conversations are stored in the data directory and survive restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := a.initialize(ctx); err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		sessions := session.NewManager(a.pipeline, session.NewStore(a.db), a.agentConfig(), a.logger)
		srv := server.New(server.Config{
			Port:           port,
			AllowAll:       cfg.Server.AllowAllOrigins,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, a.pipeline, sessions, a.audit, a.logger)

		go func() {
			<-ctx.Done()
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("shutdown", logging.Err(err))
			}
		}()

		fmt.Fprintf(os.Stderr, "minutes API on http://localhost:%d (%d topic(s))\n", port, len(a.pipeline.Topics()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
