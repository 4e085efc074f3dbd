package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/taskforge/platform/pkg/acp"
	"github.com/taskforge/platform/pkg/config"
	"github.com/taskforge/platform/pkg/sse"
	"github.com/taskforge/platform/pkg/version"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (SSE streaming + ACP task submission)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(context.Background(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := sse.NewBridge(a.store, a.sdk, a.sessions, a.providers, sse.Config{
		Model:        cfg.LLM.DefaultModel,
		MaxTurns:     cfg.LLM.DefaultMaxTurns,
		WorkspaceDir: cfg.Workspace.BasePath,
	})
	acpHandler := acp.NewHandler(a.dispatcher, a.store)

	e := echo.New()
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	e.GET("/health", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "healthy",
			"version": version.Full(),
		})
	})

	conv := e.Group("/conversations/:id")
	conv.POST("/messages", bridge.HandleSendMessage)
	conv.POST("/interrupt", bridge.HandleInterrupt)
	conv.DELETE("/session", bridge.HandleDisconnect)

	v1 := e.Group("/api/v1")
	v1.POST("/runs", acpHandler.HandleCreateRun)
	v1.GET("/runs/:run_id", acpHandler.HandleGetRun)

	if err := a.cleanup.Start(ctx); err != nil {
		return err
	}
	defer a.cleanup.Stop()

	srv := &http.Server{Addr: addr, Handler: e}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
