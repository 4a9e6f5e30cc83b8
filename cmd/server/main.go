package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	iofs "io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/matthewjberger/summoner/internal/agent"
	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/config"
	"github.com/matthewjberger/summoner/internal/dispatch"
	"github.com/matthewjberger/summoner/internal/frontend"
	"github.com/matthewjberger/summoner/internal/logger"
	"github.com/matthewjberger/summoner/internal/mcp"
	"github.com/matthewjberger/summoner/internal/protocol"
	"github.com/matthewjberger/summoner/internal/schedule"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	// Check for subcommands before parsing flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			cmdInit()
			return
		case "--version", "-v", "version":
			fmt.Printf("summoner %s\n", Version)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Default: run server
	runServer()
}

func printUsage() {
	fmt.Printf(`Summoner %s - Headless AI Agent Session Coordinator

Usage: summoner [command] [options]

Commands:
  (default)    Start the MCP server
  init         Initialize Summoner directory structure
  version      Print version
  help         Show this help

Server Options:
  --dir <path>       Summoner home directory
  --daemon           Start server in background and exit when ready

Config Precedence (for server):
  1. --dir flag
  2. SUMMONER_HOME env var
  3. ./.summoner (if initialized in current directory)
  4. ~/.summoner (default)

Examples:
  summoner                             Start the server (auto-detect config)
  summoner --dir /path/to/summoner     Start with specific config directory
  summoner --daemon                    Start in background
  summoner init                        Set up ~/.summoner
  summoner init --dir .                Set up in current directory
`, Version)
}

func runServer() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	dirFlag := flag.String("dir", "", "Summoner home directory (default: ~/.summoner)")
	daemonFlag := flag.Bool("daemon", false, "Run in background and exit after server is ready")
	flag.Parse()

	if *showVersion {
		fmt.Printf("summoner %s\n", Version)
		os.Exit(0)
	}

	// Daemon mode: re-exec in background and wait for health check
	if *daemonFlag {
		runDaemon(*dirFlag)
		return
	}

	summonerDir := resolveSummonerDir(*dirFlag)
	configDir := filepath.Join(summonerDir, "config")
	dataDir := filepath.Join(summonerDir, "data")
	logDir := filepath.Join(dataDir, "logs")

	// A missing config file is fine; defaults are used. Note it so a typo'd
	// --dir does not silently run with defaults.
	if _, err := os.Stat(filepath.Join(configDir, "summoner.jsonc")); errors.Is(err, iofs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "No summoner.jsonc in %s, using defaults. Run 'summoner init' to create one.\n", configDir)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(logDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Println("✨ Summoner - Headless AI Agent Session Coordinator")
	logger.Println("")

	addr := cfg.Server.Address

	// The coordinator core: bridge for sync-over-async tool calls, event
	// buffer for the polling frontend, worker for the claude subprocess.
	b := bridge.New()
	events := frontend.NewEventBuffer(cfg.Events.BufferSize)

	worker := agent.NewWorker(cfg.Agent.Binary)
	if cfg.Agent.WorkingDir != "" {
		worker.SetWorkingDirectory(cfg.Agent.WorkingDir)
	}
	go worker.Run()

	exportDir := cfg.ExportDir
	if !filepath.IsAbs(exportDir) {
		exportDir = filepath.Join(dataDir, exportDir)
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		logger.Fatalf("Failed to create export directory: %v", err)
	}

	dispatcher := dispatch.New(worker, b, events, dispatch.Config{
		ExportDir:   exportDir,
		MCPEndpoint: fmt.Sprintf("http://localhost%s/mcp", addr),
	})
	go dispatcher.Run()

	logger.Printf("🤖 Agent binary: %s", cfg.Agent.Binary)
	logger.Printf("📁 Export directory: %s", exportDir)
	logger.Printf("📝 Logs directory: %s", logDir)

	// Scheduled prompts, if enabled
	var scheduleStore *schedule.Store
	var runner *schedule.Runner
	if cfg.Schedule.Enabled {
		scheduleDir := cfg.Schedule.DataDir
		if !filepath.IsAbs(scheduleDir) {
			scheduleDir = filepath.Join(summonerDir, scheduleDir)
		}
		scheduleStore, err = schedule.NewStore(scheduleDir)
		if err != nil {
			logger.Fatalf("Failed to initialize schedule store: %v", err)
		}
		logger.Printf("📅 Schedule database: %s/schedules.db", scheduleDir)

		defaultModel := cfg.Agent.DefaultModel
		runner = schedule.NewRunner(scheduleStore, func(ctx context.Context, sched *schedule.Schedule) (string, error) {
			model := sched.Model
			if model == "" {
				model = defaultModel
			}
			err := dispatcher.SubmitCommand(protocol.FrontendCommand{
				Type:      protocol.CmdSendPrompt,
				Prompt:    sched.Prompt,
				SessionID: sched.SessionID,
				Model:     model,
			})
			return sched.SessionID, err
		})
		runner.Start()
	}

	server := mcp.NewServer(b, dispatcher, &mcp.ServerConfig{
		RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	logger.Println("🚀 Starting Summoner MCP server...")
	logger.Printf("📡 Server address: http://localhost%s/mcp", addr)
	logger.Println("")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(addr)
	}()

	select {
	case err := <-serverErr:
		logger.Fatalf("Server error: %v", err)
	case sig := <-shutdownChan:
		logger.Printf("⚠️  Received signal %v, initiating graceful shutdown...", sig)

		logger.Println("   Closing HTTP listener...")
		server.Close()

		if runner != nil {
			logger.Println("   Stopping schedule runner...")
			runner.Stop()
		}

		logger.Println("   Stopping dispatcher...")
		dispatcher.Close()

		logger.Println("   Stopping agent worker...")
		worker.Close()

		if scheduleStore != nil {
			logger.Println("   Closing schedule database...")
			_ = scheduleStore.Close()
		}

		logger.Println("✅ Shutdown complete")
		_ = logger.Close()
		os.Exit(0) //nolint:gocritic // intentional exit after manual cleanup
	}
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Directory to initialize (default: ~/.summoner)")
	_ = fs.Parse(os.Args[2:])

	var summonerDir string
	if *dirFlag != "" {
		absDir, err := filepath.Abs(*dirFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid directory: %v\n", err)
			os.Exit(1)
		}
		summonerDir = absDir
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not determine home directory: %v\n", err)
			os.Exit(1)
		}
		summonerDir = filepath.Join(homeDir, ".summoner")
	}

	configDir := filepath.Join(summonerDir, "config")
	dataDir := filepath.Join(summonerDir, "data")

	configFile := filepath.Join(configDir, "summoner.jsonc")
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("⚠️  %s is already initialized.\n", summonerDir)
		fmt.Print("Overwrite? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	fmt.Println("✨ Initializing Summoner")
	fmt.Println("")

	dirs := []string{
		configDir,
		filepath.Join(dataDir, "logs"),
		filepath.Join(dataDir, "exports"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
		fmt.Printf("   Created %s\n", dir)
	}

	defaultConfig := `{
  // Summoner Configuration

  "server": {
    "address": ":8080"
  },

  "agent": {
    // Path to the claude CLI binary
    "binary": "claude",
    // Model passed to --model for new queries (empty uses the CLI default)
    "default_model": "",
    // Working directory for agent subprocesses (empty uses the server's cwd)
    "working_dir": ""
  },

  "bridge": {
    // How often tool calls poll for a dispatcher response
    "poll_interval_ms": 50,
    // Poll attempts before a tool call times out (200 * 50ms = 10s)
    "max_attempts": 200
  },

  "events": {
    // Ring buffer size for frontend-visible backend events
    "buffer_size": 1000
  },

  "schedule": {
    // Enable cron-scheduled prompts
    "enabled": false,
    "data_dir": "data"
  },

  "rate_limit": {
    "requests_per_second": 10,
    "burst": 20
  },

  // Scene export destination, relative to the data directory
  "export_dir": "exports"
}
`
	if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating summoner.jsonc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Created %s\n", configFile)

	fmt.Println("")
	fmt.Println("✅ Summoner initialized!")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("   1. Review %s\n", configFile)
	fmt.Println("   2. Run 'summoner' to start the server")
}

// resolveSummonerDir determines the summoner home directory with precedence:
// 1. Explicit flag (if provided)
// 2. SUMMONER_HOME env var
// 3. ./.summoner (current directory, if initialized)
// 4. ~/.summoner (default)
func resolveSummonerDir(flagDir string) string {
	if flagDir != "" {
		absDir, err := filepath.Abs(flagDir)
		if err != nil {
			log.Fatalf("Invalid directory: %v", err)
		}
		return absDir
	}

	if envDir := os.Getenv("SUMMONER_HOME"); envDir != "" {
		absDir, err := filepath.Abs(envDir)
		if err != nil {
			log.Fatalf("Invalid SUMMONER_HOME: %v", err)
		}
		return absDir
	}

	cwd, err := os.Getwd()
	if err == nil {
		// Check for config directly in cwd, then a .summoner subdirectory
		directConfig := filepath.Join(cwd, "config", "summoner.jsonc")
		if _, err := os.Stat(directConfig); err == nil {
			return cwd
		}
		localDir := filepath.Join(cwd, ".summoner")
		configFile := filepath.Join(localDir, "config", "summoner.jsonc")
		if _, err := os.Stat(configFile); err == nil {
			return localDir
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	return filepath.Join(homeDir, ".summoner")
}

// runDaemon starts the server in background and waits for it to be ready
func runDaemon(dirFlag string) {
	executable, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding executable: %v\n", err)
		os.Exit(1)
	}

	// Resolve config to get the server address for the health check
	summonerDir := resolveSummonerDir(dirFlag)
	configDir := filepath.Join(summonerDir, "config")
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	serverAddr := cfg.Server.Address
	port := serverAddr
	if idx := strings.LastIndex(serverAddr, ":"); idx >= 0 {
		port = serverAddr[idx+1:]
	}
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)

	// Check if already running
	resp, err := http.Get(healthURL)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			fmt.Printf("✅ Summoner already running on port %s\n", port)
			os.Exit(0)
		}
	}

	logFile := filepath.Join(summonerDir, "data", "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating log directory: %v\n", err)
		os.Exit(1)
	}
	cmdStr := fmt.Sprintf("nohup %s", executable)
	if dirFlag != "" {
		cmdStr += fmt.Sprintf(" --dir %s", dirFlag)
	}
	cmdStr += fmt.Sprintf(" > %s 2>&1 &", logFile)

	cmd := exec.Command("sh", "-c", cmdStr)
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting summoner on port %s...\n", port)

	maxWait := 30 * time.Second
	checkInterval := 500 * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		resp, err := http.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Printf("✅ Summoner running on port %s\n", port)
				os.Exit(0)
			}
		}
		time.Sleep(checkInterval)
	}

	fmt.Fprintf(os.Stderr, "Error: server failed to start within %v\n", maxWait)
	fmt.Fprintf(os.Stderr, "Check logs at: %s\n", logFile)
	os.Exit(1)
}
