package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cmorg789/vox/internal/cleanup"
	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/internal/telemetry"
	"github.com/cmorg789/vox/pkg/api"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/config"
	"github.com/cmorg789/vox/pkg/dispatch"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/metrics"
	promm "github.com/cmorg789/vox/pkg/metrics/prometheus"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/notify"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/ratelimit"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Vox server",
	Long: `Start the Vox server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/vox/config.yaml.

Examples:
  # Start in background (default)
  vox start

  # Start in foreground
  vox start --foreground

  # Start with custom config file
  vox start --config /etc/vox/config.yaml

  # Start with environment variable overrides
  VOX_LOGGING_LEVEL=DEBUG vox start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/vox/vox.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/vox/vox.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vox",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "vox",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Initialize metrics (if enabled). The registry must exist before any
	// component constructs its collectors.
	metricsServer := initMetrics(cfg)
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	// Open the store (runs migrations)
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Ensure admin user exists (generates random password on first run)
	adminPassword, err := st.EnsureAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", logger.Username(models.AdminUsername))
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	// Open the durable event log
	eventLog, err := eventlog.New(ctx, cfg.EventLog)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer func() { _ = eventLog.Close() }()
	logger.Info("Event log ready", "backend", cfg.EventLog.Backend, "retention", cfg.EventLog.Retention)

	// Core pipeline: hub -> dispatcher -> handlers
	hub := gateway.NewHub(cfg.Gateway, promm.NewGatewayMetrics())
	ids := snowflake.New()
	dispatcher := dispatch.New(hub, eventLog, ids, promm.NewEventLogMetrics(string(cfg.EventLog.Backend)))
	resolver := permissions.NewResolver(st)
	authSvc := auth.NewService(st)

	// Federation stack, only when a domain is configured
	var (
		fedVerifier  *federation.Verifier
		fedVouchers  *federation.VoucherService
		fedClient    *federation.Client
		presenceSink gateway.PresenceSink
	)
	if cfg.Federation.Domain != "" {
		fedMetrics := promm.NewFederationMetrics()
		keys := federation.NewKeyManager(st)
		pub, _, err := keys.Keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to load federation signing key: %w", err)
		}
		dnsResolver, err := federation.NewDNSResolver(fedMetrics)
		if err != nil {
			return fmt.Errorf("failed to initialize federation resolver: %w", err)
		}
		policy := federation.NewPolicyChecker(st, dnsResolver, cfg.Federation.Policy)
		fedVerifier = federation.NewVerifier(dnsResolver, policy)
		fedVouchers = federation.NewVoucherService(keys, dnsResolver, st, fedMetrics)
		fedClient = federation.NewClient(cfg.Federation, keys, dnsResolver, policy, fedMetrics)
		presenceSink = federation.NewPresenceNotifier(st, fedClient, cfg.Federation.Domain)
		logger.Info("Federation enabled",
			logger.Domain(cfg.Federation.Domain),
			"policy", cfg.Federation.Policy,
			"public_key", base64.StdEncoding.EncodeToString(pub))
	} else {
		logger.Info("Federation disabled (set federation.domain to enable)")
	}

	// Push notifications
	notifier := notify.New(st, hub, dispatcher, cfg.Push)
	if cfg.Push.Enabled {
		logger.Info("Web push enabled", "subscriber", cfg.Push.Subscriber)
	}

	// Rate limiting
	limiter := ratelimit.New()
	rateLimitMW := api.NewRateLimitMiddleware(limiter, authSvc)

	// Background cleanup loops
	janitor := cleanup.New(cleanup.Deps{
		Store:      st,
		Hub:        hub,
		EventLog:   eventLog,
		Limiter:    limiter,
		Middleware: rateLimitMW,
	}, cleanup.Config{})
	janitor.Start(ctx)
	defer janitor.Stop()

	apiServer := api.NewServer(cfg.Server, api.Deps{
		Store:      st,
		Auth:       authSvc,
		Hub:        hub,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		IDs:        ids,
		EventLog:   eventLog,

		Notifier: notifier,

		FedVerifier: fedVerifier,
		FedVouchers: fedVouchers,
		FedClient:   fedClient,

		RateLimiter:  rateLimitMW,
		PresenceSink: presenceSink,

		GatewayConfig: cfg.Gateway,
		Domain:        cfg.Federation.Domain,
		ServerName:    cfg.Gateway.ServerName,

		HTTPMetrics: promm.NewHTTPMetrics(),
	})

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start serving in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")

		// Close every gateway connection (4008 Server restarting) before
		// tearing down the HTTP listener.
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		hub.Shutdown(shutdownCtx)
		cancelShutdown()
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// initMetrics sets up the Prometheus registry and, when enabled, a
// dedicated metrics listener. The main router also exposes /metrics for
// deployments that prefer a single port.
func initMetrics(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		logger.Info("Metrics collection disabled")
		return nil
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("Metrics server listening", "port", cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", logger.Err(err))
		}
	}()
	return srv
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "vox.pid")
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("vox is already running (PID %d)\nUse 'vox stop' to stop the running instance", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(stateDir, "vox.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	daemon := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	daemon.Stdout = logFileHandle
	daemon.Stderr = logFileHandle

	// Detach from parent process
	daemon.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := daemon.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("Vox started in background (PID %d)\n", daemon.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'vox stop' to stop the server")
	fmt.Println("Use 'vox status' to check server status")

	return nil
}
