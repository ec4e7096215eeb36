package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/shapelet/internal/engine"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/api/rest"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/config"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/observability"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/signature"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	// Parse command-line flags
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Shapelet Discrepancy Server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	// Load configuration from environment
	cfg := config.LoadFromEnv()

	// Override with command-line flags
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Server.LogLevel), os.Stdout)
	metrics := observability.NewMetrics()

	registry := engine.New(signature.Reference{}, logger, metrics, cfg.Engine.MaxInstances)
	server := rest.NewServer(cfg, registry, metrics, logger)

	printStartupInfo(cfg)

	// Run the server; Start blocks until shutdown or listener failure
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", map[string]interface{}{
			"signal": sig.String(),
		})
		if err := server.Stop(); err != nil {
			logger.Error("Error during shutdown", map[string]interface{}{
				"error": err.Error(),
			})
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}

	logger.Info("Server stopped")
}

func printStartupInfo(cfg *config.Config) {
	fmt.Printf("Shapelet Discrepancy Server v%s (commit: %s)\n", version, commit)
	fmt.Printf("  Address:        %s\n", cfg.Server.Address())
	fmt.Printf("  Max instances:  %d\n", cfg.Engine.MaxInstances)
	fmt.Printf("  Workers:        %d\n", cfg.Engine.Workers)
	fmt.Printf("  Max channels:   %d\n", cfg.Engine.MaxChannels)
	fmt.Printf("  Max knots:      %d\n", cfg.Engine.MaxKnots)
	fmt.Printf("  Auth enabled:   %v\n", cfg.Auth.Enabled)
	fmt.Printf("  Rate limiting:  %v\n", cfg.RateLimit.Enabled)
	fmt.Println()
}

func showUsage() {
	fmt.Println("Shapelet Discrepancy Server - path discrepancies over HTTP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  shapelet-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  SHAPELET_HOST              Server host")
	fmt.Println("  SHAPELET_PORT              Server port")
	fmt.Println("  SHAPELET_LOG_LEVEL         Log level (DEBUG/INFO/WARN/ERROR)")
	fmt.Println("  SHAPELET_MAX_INSTANCES     Registered discrepancy limit")
	fmt.Println("  SHAPELET_WORKERS           Parallel kernel workers (0 = NumCPU)")
	fmt.Println("  SHAPELET_MAX_CHANNELS      Per-path channel limit")
	fmt.Println("  SHAPELET_MAX_KNOTS         Time grid length limit")
	fmt.Println("  SHAPELET_AUTH_ENABLED      Enable JWT auth (true/false)")
	fmt.Println("  SHAPELET_JWT_SECRET        JWT signing secret")
	fmt.Println("  SHAPELET_RATE_LIMIT_ENABLED Enable rate limiting (true/false)")
	fmt.Println("  SHAPELET_RATE_LIMIT_RPS     Requests per second")
	fmt.Println("  SHAPELET_RATE_LIMIT_BURST   Burst size")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Start with default configuration")
	fmt.Println("  shapelet-server")
	fmt.Println()
	fmt.Println("  # Start on custom port")
	fmt.Println("  shapelet-server -port 9090")
	fmt.Println()
	fmt.Println("  # Start with environment variables")
	fmt.Println("  SHAPELET_PORT=9090 SHAPELET_WORKERS=4 shapelet-server")
	fmt.Println()
}
