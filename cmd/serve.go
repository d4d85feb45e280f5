package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shipclass/internal/apihandlers"
)

const shutdownTimeout = 15 * time.Second

var (
	serveAddr    string
	serveMaxRows int
	serveRelease bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run shipclass as an HTTP API server",
	Long: `Starts an HTTP server that classifies rows posted as JSON and exposes the
run ledger, background jobs, AI usage, health and Prometheus metrics.
Without a provider API key the server still starts, but /classify answers 503.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		if err := requireClassifier(ctx, appInstance); err != nil {
			if !isMissingAPIKey(err) {
				return err
			}
			log.Warnf("Classification disabled: %v", err)
		}

		if serveRelease {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := apihandlers.NewAPIHandler(appInstance)
		if serveMaxRows > 0 {
			handler.MaxRows = serveMaxRows
		}

		listenAddr := appInstance.Config.Server.Address
		if serveAddr != "" {
			listenAddr = serveAddr
		}
		srv := &http.Server{
			Addr:              listenAddr,
			Handler:           apihandlers.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting shipclass API server on %s", listenAddr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("failed to run API server: %w", err)
		case <-ctx.Done():
		}

		log.Info("Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		log.Info("shipclass API server stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides server.address (e.g. ':8080')")
	serveCmd.Flags().IntVar(&serveMaxRows, "max-rows", 0, "Maximum rows accepted per classify request")
	serveCmd.Flags().BoolVar(&serveRelease, "release", false, "Run gin in release mode")
}
