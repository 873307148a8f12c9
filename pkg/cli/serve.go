package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/CAcquaviva/mcp-konnect/pkg/config"
	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
	"github.com/CAcquaviva/mcp-konnect/pkg/logging"
	"github.com/CAcquaviva/mcp-konnect/pkg/mcp"
	"github.com/CAcquaviva/mcp-konnect/pkg/telemetry"
)

// instrumentationName scopes the meter and tracer of the tool observer.
const instrumentationName = "github.com/CAcquaviva/mcp-konnect"

// serveFlagKeys maps serve flags to their viper keys.
var serveFlagKeys = map[string]string{
	"port":          config.KeyPort,
	"path":          config.KeyPath,
	"allow-remote":  config.KeyAllowRemote,
	"region":        config.KeyRegion,
	"base-url":      config.KeyBaseURL,
	"otlp-endpoint": config.KeyOTLPEndpoint,
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (default command)",
		Long: `Start the MCP server in the foreground. Clients connect with the
Streamable HTTP transport at http://127.0.0.1:<port><path>.`,
		Example: `  # Start with defaults (port 3001, path /mcp, region us)
  KONNECT_ACCESS_TOKEN=kpat_xxx konnect-mcp serve

  # EU region on a custom port
  konnect-mcp serve --region eu --port 8080

  # Accept non-loopback clients
  konnect-mcp serve --allow-remote

  # Export tool spans to a local collector
  konnect-mcp serve --otlp-endpoint http://localhost:4318/v1/traces`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runServe(cmd)
		},
	}
	addServeFlags(cmd)
	return cmd
}

// addServeFlags registers the server flags on cmd. They are bound to viper
// when the command runs, so root and serve can both carry them.
func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("port", "p", 3001, "HTTP port for the MCP endpoint")
	f.String("path", "/mcp", "URL path of the MCP endpoint")
	f.Bool("allow-remote", false, "Accept connections from non-loopback addresses")
	f.String("region", string(config.DefaultRegion), "Konnect region (us, eu, au, me, in)")
	f.String("base-url", "", "Override the Konnect API base URL")
	f.String("otlp-endpoint", "", "OTLP/HTTP traces URL (e.g. http://localhost:4318/v1/traces)")
}

func bindServeFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range serveFlagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves the configuration for the running command.
func (o *rootOptions) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	if err := bindServeFlags(o.v, fs); err != nil {
		return nil, err
	}
	return config.Load(o.v, o.configFile)
}

func (o *rootOptions) runServe(cmd *cobra.Command) error {
	cfg, err := o.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// serve runs the MCP server until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Konnect.AccessToken == "" {
		log.Warn("KONNECT_ACCESS_TOKEN is not set; Konnect calls will fail until it is provided")
	}

	client := konnect.NewClient(cfg.KonnectBaseURL(), cfg.Konnect.AccessToken,
		konnect.WithTimeout(cfg.Konnect.RequestTimeout),
		konnect.WithUserAgent("konnect-mcp/"+Version),
	)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    "konnect-mcp",
		ServiceVersion: Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("failed to flush telemetry", "error", err)
		}
	}()

	observer, err := mcp.NewToolObserver(
		otel.GetMeterProvider().Meter(instrumentationName),
		otel.Tracer(instrumentationName),
	)
	if err != nil {
		return fmt.Errorf("failed to create tool observer: %w", err)
	}

	srv, err := mcp.NewServer(mcpConfig(cfg), client,
		mcp.WithToolObserver(observer),
		mcp.WithLogger(logging.Component(log, "mcp")),
	)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	log.Info("konnect MCP server started",
		"url", "http://"+srv.Addr()+cfg.Server.Path,
		"region", cfg.Konnect.Region,
		"konnect", cfg.KonnectBaseURL(),
		"tools", len(srv.Tools().Names()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-srv.Errors():
			return fmt.Errorf("MCP server failed: %w", err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return srv.Stop()
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// mcpConfig converts the process config into the MCP server config.
func mcpConfig(cfg *config.Config) *mcp.Config {
	c := mcp.DefaultConfig()
	c.Port = cfg.Server.Port
	c.Path = cfg.Server.Path
	c.AllowRemote = cfg.Server.AllowRemote
	if len(cfg.Server.AllowedOrigins) > 0 {
		c.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	c.SessionTimeout = cfg.Server.SessionTimeout
	c.MaxSessions = cfg.Server.MaxSessions
	if cfg.Server.KeepaliveInterval > 0 {
		c.KeepaliveInterval = cfg.Server.KeepaliveInterval
	}
	if cfg.Server.ShutdownTimeout > 0 {
		c.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	return c
}
