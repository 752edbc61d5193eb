package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/bridge"
	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/internal/odata"
	"github.com/pitabwire/outlookbridge/internal/openapi"
	"github.com/pitabwire/outlookbridge/internal/transport"
)

const serviceName = "outlook-bridge"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Bridge named Outlook actions to the Office 365 REST service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
	}
	root.PersistentFlags().String("config", os.Getenv("OUTLOOKBRIDGE_CONFIG"), "path to configuration file")

	root.AddCommand(newServeCommand(), newInvokeCommand(), newActionsCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the action catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), path)
		},
	}
}

func newInvokeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <action> <token> <service-root> <resource-path> [args...]",
		Short: "Run one action and print its reply as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			wait, _ := cmd.Flags().GetDuration("wait")
			return invoke(cmd.Context(), cmd.OutOrStdout(), path, wait, args[0], args[1:])
		},
	}
	cmd.Flags().Duration("wait", time.Minute, "how long to wait for the reply")
	return cmd
}

func newActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the supported actions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, a := range bridge.Actions() {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
		},
	}
}

// app holds the components shared by serve and invoke.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	odata      *odata.Transport
	dispatcher *bridge.Dispatcher
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.InitMetrics(registry)

	remote := odata.NewTransport(cfg.OData,
		odata.WithRecorder(metrics),
		odata.WithLogger(logger.Named("odata")),
	)
	dispatcher := bridge.New(remote.NewClient,
		bridge.WithLogger(logger.Named("bridge")),
		bridge.WithMetrics(metrics),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		metrics:    metrics,
		odata:      remote,
		dispatcher: dispatcher,
	}, nil
}

func serve(parent context.Context, configPath string) error {
	rt, err := newApp(configPath)
	if err != nil {
		return err
	}
	logger := rt.logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, rt.cfg.Observability.Tracing, serviceName, version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}

	actions := bridge.Actions()
	doc, err := openapi.Build(actions, version)
	if err != nil {
		logger.Error("openapi document build failed", zap.Error(err))
		return err
	}
	index := openapi.NewIndex(doc)

	router := transport.NewRouter(transport.Dependencies{
		Config:     rt.cfg,
		Dispatcher: rt.dispatcher,
		Actions:    actions,
		OpenAPI:    index,
		Logger:     logger,
		Metrics:    rt.metrics,
		Gatherer:   rt.registry,
		Readiness: observability.ReadinessChecks{
			CatalogLoaded: func() bool { return len(actions) > 0 },
			Remote:        rt.odata,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       rt.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      rt.cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", rt.cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("actions", len(actions)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	shutdownTimeout := rt.cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Remote calls outlive their HTTP request; let them report before exit.
	if err := rt.dispatcher.Drain(shutdownCtx); err != nil {
		logger.Warn("in-flight calls abandoned", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func invoke(parent context.Context, out io.Writer, configPath string, wait time.Duration, action string, flat []string) error {
	rt, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	if parent == nil {
		parent = context.Background()
	}

	pending, ok := rt.dispatcher.Dispatch(parent, action, flat)
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}

	waitCtx, cancel := context.WithTimeout(parent, wait)
	defer cancel()
	result, err := pending.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", action, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(transport.NewReply(result))
}
