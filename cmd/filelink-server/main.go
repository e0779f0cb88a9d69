// Command filelink-server runs the FileLink storage server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/server"
	"github.com/sxlmons/filelink/pkg/config"
)

// Build-time variables set by ldflags
var (
	version    = "dev"
	buildTime  = "unknown"
	commitHash = "unknown"
)

func main() {
	configPath := "filelink.yaml"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersion()
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			configPath = os.Args[1]
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	logger.Info("filelink-server started",
		zap.String("version", version),
		zap.String("config", configPath))

	<-ctx.Done()
	srv.Shutdown()
}

func printVersion() {
	fmt.Printf("FileLink server %s\n", version)
	fmt.Printf("Built: %s\n", buildTime)
	fmt.Printf("Commit: %s\n", commitHash)
}

func printUsage() {
	fmt.Printf(`FileLink server v%s - networked file storage

Usage:
  filelink-server [config.yaml]

Commands:
  version   Show version information
  help      Show this help message

The configuration file is optional; defaults are used for any
setting it omits (port 9000, data/ for storage and metadata).

`, version)
}
