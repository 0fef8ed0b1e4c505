package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries and rendering over HTTP",
	Long: `Start an HTTP server exposing the configured databases.

  GET  /api/databases       configured databases
  POST /api/query           {"query": "...", "database": "...", "jsonpath": "..."}
  POST /api/render/create   model document in the body, ?extras=true
  GET  /metrics             query metrics
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		getMetrics()

		s := newAPIServer(cfg)
		defer s.close(context.Background())
		srv := &http.Server{Addr: serveAddr, Handler: newRouter(s), ReadHeaderTimeout: 5 * time.Second}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", serveAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ServeCmd)
	ServeCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
}
