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

	"github.com/franz/top-movies/internal/util"
	"github.com/franz/top-movies/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web app",
	Long: `Serve the movie list over HTTP.

Pages:
- /            ranked list
- /add         search the movie database
- /edit?id=N   rate and review a movie
- /api/movies  ranked list as JSON

Stops gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on (default :5000)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	logger := util.Logger()
	srv, err := web.New(a.lib, a.store, web.Options{
		SecretKey:      a.cfg.SecretKey,
		Logger:         logger,
		RequestTimeout: a.cfg.Provider.Timeout * time.Duration(a.cfg.Provider.MaxAttempts+1),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		util.InfoLog("Listening on %s (database %s)", a.cfg.Listen, a.store.Driver())
		if a.events.Path() != "" {
			util.InfoLog("Event log: %s", a.events.Path())
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	util.InfoLog("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	util.SuccessLog("Server stopped")
	return nil
}
