// Package main provides the wall server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/videowall/internal/api/connect"
	"github.com/osa030/videowall/internal/app/admission"
	"github.com/osa030/videowall/internal/app/drift"
	"github.com/osa030/videowall/internal/app/session"
	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/infra/config"
	"github.com/osa030/videowall/internal/infra/logger"
	"github.com/osa030/videowall/internal/infra/metrics"
	"github.com/osa030/videowall/internal/infra/simtile"
)

var (
	app        = kingpin.New("wallserver", "Synchronized video wall server")
	configPath = app.Flag("config", "Path to config file").Default("config/wallserver.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available admission filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	err = run(cfg)
	_ = closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main server logic so deferred cleanup runs before exit.
func run(cfg *config.Config) error {
	settings, err := simtile.DecodeSettings(cfg.Simulation.Settings)
	if err != nil {
		return errors.Wrap(err, "invalid simulation settings")
	}
	factory := simtile.NewFactory(settings)
	recorder := metrics.New()

	sessionMgr, err := session.NewManager(managerConfig(cfg), factory.Build, recorder)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	wallService := apiconnect.NewWallService(sessionMgr)
	authInterceptor := apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token, apiconnect.ReadOnlyProcedures...)
	wallPath, wallHandler := apiconnect.NewWallServiceHandler(
		wallService,
		connect.WithInterceptors(authInterceptor),
	)

	mux := http.NewServeMux()
	mux.Handle(wallPath, wallHandler)
	mux.Handle("/metrics", recorder.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s tiles=%d kind=%s", cfg.Server.Addr, cfg.Wall.TileCount, cfg.Wall.Kind)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session manager closed, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the manager first so open Watch streams terminate
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// managerConfig maps the file configuration onto the session manager.
func managerConfig(cfg *config.Config) session.Config {
	return session.Config{
		TileCount:   cfg.Wall.TileCount,
		InitialKind: source.Kind(cfg.Wall.Kind),
		Muted:       cfg.IsMuted(),
		Sync: drift.Settings{
			GapMillis:   cfg.Sync.GapMs,
			SyncEnabled: !cfg.Sync.FreeRun,
		},
		AutoAdvance: cfg.IsAutoAdvance(),
		LoopQueue:   cfg.Queue.LoopQueue,
		Filters:     cfg.EnabledFilters(),
		Session: session.SessionConfig{
			BufferTimeout: cfg.BufferTimeout(),
			Rate: drift.RateConfig{
				SoftThreshold: cfg.Drift.Rate.SoftThreshold,
				HardThreshold: cfg.Drift.Rate.HardThreshold,
				FastRate:      cfg.Drift.Rate.FastRate,
				SlowRate:      cfg.Drift.Rate.SlowRate,
				Interval:      cfg.Drift.Rate.Interval(),
			},
			Seek: drift.SeekConfig{
				SoftThreshold: cfg.Drift.Seek.SoftThreshold,
				HardThreshold: cfg.Drift.Seek.HardThreshold,
				Interval:      cfg.Drift.Seek.Interval(),
			},
		},
	}
}

// printFilters prints available admission filters.
func printFilters() {
	printFiltersTo(os.Stdout)
}

func printFiltersTo(w io.Writer) {
	registry := admission.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available Filters:")
	for _, name := range names {
		f := registry[name](admission.Deps{})
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Fprintf(w, "  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
