// Command recruitcrm-mcp serves the RecruitCRM tool catalog over HTTP, SSE and streamable MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"recruitcrm-mcp/internal/config"
	"recruitcrm-mcp/internal/logging"
	"recruitcrm-mcp/internal/recruitcrm"
	"recruitcrm-mcp/internal/server"
	"recruitcrm-mcp/internal/telemetry"
	"recruitcrm-mcp/internal/tools"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:           "recruitcrm-mcp",
		Short:         "MCP tool server for the RecruitCRM REST API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serve := newServeCmd(v)
	if err := config.RegisterFlags(v, serve.Flags()); err != nil {
		panic(err)
	}
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newToolsCmd())
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			ln, err := net.Listen("tcp", cfg.Addr())
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
			}
			return run(ctx, cfg, logger, ln)
		},
	}
}

func newToolsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTools(cmd.OutOrStdout(), tools.DefaultCatalog(), tools.Category(category))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list tools in this category")
	return cmd
}

type toolSummary struct {
	Name                 string         `json:"name"`
	Category             tools.Category `json:"category"`
	Method               string         `json:"method"`
	Endpoint             string         `json:"endpoint"`
	Required             []string       `json:"required,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
}

func printTools(w io.Writer, catalog *tools.Catalog, category tools.Category) error {
	defs := catalog.All()
	if category != "" {
		defs = catalog.ByCategory(category)
	}
	out := make([]toolSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolSummary{
			Name:                 d.Name,
			Category:             d.Category,
			Method:               d.Method,
			Endpoint:             string(d.Service) + ":" + d.Path,
			Required:             d.RequiredParams(),
			RequiresConfirmation: d.RequiresConfirmation,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// run serves on ln until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger, ln net.Listener) error {
	client, err := recruitcrm.New(cfg.Credentials(), cfg.ClientOptions())
	if err != nil {
		return err
	}
	metrics := telemetry.NewPrometheusMetrics(nil)
	dispatcher := tools.NewDispatcher(tools.DefaultCatalog(), client, logger, metrics)
	srv, err := server.New(server.Config{
		Token:          cfg.MCPToken,
		PublicURL:      cfg.PublicURL,
		Version:        version,
		RequestTimeout: routeTimeout(cfg.Timeout),
		Metrics:        metrics.Handler(),
		Logger:         logger,
	}, dispatcher)
	if err != nil {
		return err
	}

	if cfg.MCPToken == "" {
		logger.Warn("MCP_TOKEN not set; endpoints are open")
	}
	httpSrv := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("tls", cfg.TLS.Enabled()),
			zap.Int("tools", dispatcher.Catalog().Len()),
			zap.String("version", version),
		)
		if cfg.TLS.Enabled() {
			errCh <- httpSrv.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("closing mcp sessions", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		// open SSE streams outlive the drain window
		logger.Warn("forcing close", zap.Error(err))
		if err := httpSrv.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// routeMargin leaves room to write the envelope after an outbound call hits its own timeout.
const routeMargin = 15 * time.Second

// routeTimeout bounds request/response routes so an outbound call always times out first.
func routeTimeout(outbound time.Duration) time.Duration {
	if outbound <= 0 {
		outbound = recruitcrm.DefaultTimeout
	}
	return outbound + routeMargin
}
