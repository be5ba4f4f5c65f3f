package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muster-io/muster/internal/api"
	"github.com/muster-io/muster/internal/childmode"
	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/dispatch"
	"github.com/muster-io/muster/internal/doctor"
	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/journal"
	"github.com/muster-io/muster/internal/lock"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/manage"
	"github.com/muster-io/muster/internal/profile"
	"github.com/muster-io/muster/internal/state"
	"github.com/muster-io/muster/internal/tui/watch"
)

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverPath()
		if err != nil {
			return "", err
		}
		configPath = discovered
	}
	return filepath.Abs(configPath)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate config: %v\n", err)
		return 1
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("muster starting", "version", version, "config", path, "fingerprint", cfg.Fingerprint)

	// Children re-invoke this binary and need the same config for the
	// executor bridge.
	_ = os.Setenv("MUSTER_CONFIG", path)

	pidLock, err := lock.Acquire(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire pid lock (another controller may be running)",
			"path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired pid lock", "path", cfg.Service.LockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jnl, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
		return 1
	}
	defer jnl.Close()
	logger.Info("journal opened", "path", cfg.Journal.Path)

	registry, err := profile.Discover(cfg.ProfilesDir, log.WithComponent("profile"))
	if err != nil {
		logger.Error("profile discovery failed", "profiles_dir", cfg.ProfilesDir, "error", err)
		return 1
	}
	logger.Info("profile discovery complete", "count", len(registry.Names()), "profiles", registry.Names())

	st := state.NewStore()
	hub := events.NewHub(256)
	disp := dispatch.New(st, registry, cfg, hub, dispatch.WithJournal(jnl))
	facade := manage.New(st, disp, manage.WithHub(hub), manage.WithJournal(jnl))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(cfg.API, facade, hub, registry, cfg.Fingerprint)
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("api server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("muster running (press Ctrl+C to stop)")

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		code = 1
	}

	// Leave no orphaned children behind.
	for _, rec := range st.List() {
		if !rec.Status.Terminal() {
			if _, err := disp.Kill(rec.AgentID); err != nil {
				logger.Warn("shutdown kill failed", "agent_id", rec.AgentID, "error", err)
			}
		}
	}
	disp.Wait()

	logger.Info("muster stopped")
	return code
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output the validation result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate config: %v\n", err)
		return 1
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config failed to load: %v\n", err)
		return 1
	}

	log.Setup("error", "text")
	registry, err := profile.Discover(cfg.ProfilesDir, log.WithComponent("profile"))
	if err != nil {
		// Doctor reports the problem itself; an empty registry is enough.
		registry = profile.NewRegistry()
	}

	result := doctor.New(cfg, registry).Validate()

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printDoctorResult(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printDoctorResult(result *doctor.Result) {
	for _, issue := range result.Errors {
		fmt.Printf("ERROR [%s] %s: %s\n", issue.Category, issue.Field, issue.Message)
	}
	for _, issue := range result.Warnings {
		fmt.Printf("WARN  [%s] %s: %s\n", issue.Category, issue.Field, issue.Message)
	}
	if result.Valid {
		fmt.Println("Status: configuration check PASSED")
	} else {
		fmt.Printf("Status: configuration check FAILED (%d errors)\n", len(result.Errors))
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Controller API URL")
	apiKey := fs.String("api-key", os.Getenv("MUSTER_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// runChild is the headless single-task mode. Stdout carries protocol lines;
// all diagnostics go to stderr. Exit 0 means the result line was written.
func runChild(args []string) int {
	path, err := resolveConfigPath("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "child: %v\n", err)
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "child: failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := childmode.NewCommandExecutor(cfg.Executor)
	if err := childmode.Run(ctx, args, executor, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "child: %v\n", err)
		return 1
	}
	return 0
}
