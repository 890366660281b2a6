package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benholden/tdoasolve/internal/tdoa"
	"github.com/benholden/tdoasolve/pkg/api/rest"
	"github.com/benholden/tdoasolve/pkg/api/rest/middleware"
	"github.com/benholden/tdoasolve/pkg/cache"
	"github.com/benholden/tdoasolve/pkg/config"
	"github.com/benholden/tdoasolve/pkg/observability"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tdoasolve server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := config.LoadFromEnv()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		observability.Fatalf("invalid configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(os.Getenv("TDOA_LOG_LEVEL")), os.Stdout)
	observability.SetGlobalLogger(logger)
	metrics := observability.NewMetrics()

	var solveCache *cache.SolveCache
	if cfg.Cache.Enabled {
		solveCache = cache.NewSolveCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	}

	solver := tdoa.NewSolver(tdoa.SolverConfig{
		Cycles:  cfg.Solver.Cycles,
		Workers: cfg.Solver.Workers,
		Seed:    cfg.Solver.Seed,
	})

	restConfig := rest.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Auth: middleware.AuthConfig{
			Enabled:          cfg.Auth.Enabled,
			JWTSecret:        cfg.Auth.JWTSecret,
			PublicPaths:      []string{"/v1/health", "/metrics"},
			PrivilegedPaths:  []string{"/v1/solve"},
			PrivilegedRole:   "solve",
			DefaultMaxCycles: cfg.Solver.Cycles,
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        true,
			RequestsPerSec: 20,
			Burst:          40,
			PerIP:          true,
			PerUser:        cfg.Auth.Enabled,
			SolveWeight:    5,
			ResidualWeight: 1,
		},
	}

	server := rest.NewServer(restConfig, solver, solveCache, metrics, logger)

	printStartupInfo(cfg)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	logger.Info("server ready, press ctrl+c to stop")
	select {
	case sig := <-sigChan:
		logger.Infof("received signal: %v", sig)
	case err := <-errChan:
		logger.Errorf("server error: %v", err)
	}

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Errorf("error stopping server: %v", err)
	}

	logger.Info("server stopped, goodbye")
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   _____ ____   ___    _    ____        _                 ║
║  |_   _|  _ \ / _ \  / \  / ___|  ___ | |_   _____        ║
║    | | | | | | | | |/ _ \ \___ \ / _ \| \ \ / / _ \       ║
║    | | | |_| | |_| / ___ \ ___) | (_) | |\ V /  __/       ║
║    |_| |____/ \___/_/   \_\____/ \___/|_| \_/ \___|       ║
║                                                           ║
║   Time-Difference-of-Arrival Emitter Localization         ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            Server Configuration                        ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Request Timeout:  %-35s ║\n", cfg.Server.RequestTimeout)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            Solver Configuration                        ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Cycles:           %-35d ║\n", cfg.Solver.Cycles)
	fmt.Printf("║ Workers:          %-35d ║\n", cfg.Solver.Workers)
	fmt.Printf("║ Seed:             %-35d ║\n", cfg.Solver.Seed)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            Cache Configuration                         ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Cache.Enabled)
	fmt.Printf("║ Capacity:         %-35d ║\n", cfg.Cache.Capacity)
	fmt.Printf("║ TTL:              %-35s ║\n", cfg.Cache.TTL)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            Auth Configuration                          ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Auth.Enabled)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("tdoasolve server - time-difference-of-arrival localization API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tdoa-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8088)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  TDOA_HOST                  Server host")
	fmt.Println("  TDOA_PORT                  Server port")
	fmt.Println("  TDOA_REQUEST_TIMEOUT       Request timeout (e.g., 30s)")
	fmt.Println("  TDOA_ENABLE_TLS            Require TLS cert/key settings (true/false); the server itself serves plain HTTP")
	fmt.Println("  TDOA_TLS_CERT              TLS certificate file")
	fmt.Println("  TDOA_TLS_KEY               TLS key file")
	fmt.Println("  TDOA_CYCLES                Multi-start cycle count")
	fmt.Println("  TDOA_WORKERS               Descent worker pool size")
	fmt.Println("  TDOA_SEED                  Base RNG seed")
	fmt.Println("  TDOA_CACHE_ENABLED         Enable solve-result cache (true/false)")
	fmt.Println("  TDOA_CACHE_CAPACITY        Cache capacity")
	fmt.Println("  TDOA_CACHE_TTL             Cache TTL (e.g., 5m)")
	fmt.Println("  TDOA_AUTH_ENABLED          Enable JWT authentication (true/false)")
	fmt.Println("  TDOA_JWT_SECRET            JWT signing secret")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Start with default configuration")
	fmt.Println("  tdoa-server")
	fmt.Println()
	fmt.Println("  # Start on custom port")
	fmt.Println("  tdoa-server -port 9090")
	fmt.Println()
	fmt.Println("  # Start with environment variables")
	fmt.Println("  TDOA_PORT=9090 TDOA_CYCLES=20 tdoa-server")
	fmt.Println()
}
