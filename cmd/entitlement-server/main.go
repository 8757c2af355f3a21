// Package main provides the entry point for the entitlement server
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/entitlement-engine/go-core/internal/api/rest"
	"github.com/entitlement-engine/go-core/internal/audit"
	"github.com/entitlement-engine/go-core/internal/cache"
	"github.com/entitlement-engine/go-core/internal/db"
	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/internal/metrics"
	"github.com/entitlement-engine/go-core/internal/policy"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		httpPort        = flag.Int("http-port", 8080, "HTTP server port")
		documentPath    = flag.String("policy-document", "policy.yaml", "Policy document file")
		overridePath    = flag.String("identity-override", "", "Identity override file (impersonation mode)")
		watchDocument   = flag.Bool("watch", true, "Reload the policy document on change")
		postgresDSN     = flag.String("postgres-dsn", "", "PostgreSQL DSN for access records (in-memory store if empty)")
		migrate         = flag.Bool("migrate", true, "Run database migrations at startup")
		redisAddr       = flag.String("redis-addr", "", "Redis address for the record cache (disabled if empty)")
		auditFile       = flag.String("audit-file", "", "Lifecycle audit trail file (disabled if empty)")
		logLevel        = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat       = flag.String("log-format", "json", "Log format (json, console)")
		showVersion     = flag.Bool("version", false, "Show version information")
		gracefulTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("entitlement-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	logger, err := initLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting entitlement server",
		zap.String("version", Version),
		zap.Int("http_port", *httpPort),
	)

	// Load the policy document
	loader := policy.NewLoader(logger)
	policyStore := policy.NewMemoryStore()

	doc, err := loader.LoadDocument(*documentPath)
	if err != nil {
		logger.Fatal("Failed to load policy document", zap.Error(err))
	}
	if err := policyStore.Replace(doc); err != nil {
		logger.Fatal("Failed to install policy document", zap.Error(err))
	}

	// Optional impersonation override
	override, err := loader.LoadOverride(*overridePath)
	if err != nil {
		logger.Fatal("Failed to load identity override", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot reload
	if *watchDocument {
		watcher, err := policy.NewFileWatcher(*documentPath, policyStore, loader, logger)
		if err != nil {
			logger.Fatal("Failed to create policy watcher", zap.Error(err))
		}
		if err := watcher.Watch(ctx); err != nil {
			logger.Fatal("Failed to start policy watcher", zap.Error(err))
		}
	}

	// Access record persistence
	var recordStore lifecycle.Store = lifecycle.NewMemoryStore()
	if *postgresDSN != "" {
		conn, err := sql.Open("postgres", *postgresDSN)
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		defer conn.Close()

		if *migrate {
			runner, err := db.NewMigrationRunner(conn)
			if err != nil {
				logger.Fatal("Failed to create migration runner", zap.Error(err))
			}
			if err := runner.Up(); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}

		pgStore, err := lifecycle.NewPostgresStore(conn)
		if err != nil {
			logger.Fatal("Failed to create postgres store", zap.Error(err))
		}
		recordStore = pgStore
		logger.Info("Using PostgreSQL access record store")
	}

	if *redisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = *redisAddr
		cached, err := cache.New(cacheCfg, recordStore, logger)
		if err != nil {
			logger.Fatal("Failed to create record cache", zap.Error(err))
		}
		defer cached.Close()
		recordStore = cached
		logger.Info("Record cache enabled", zap.String("addr", *redisAddr))
	}

	// Lifecycle audit trail
	var auditWriter audit.Writer = audit.NopWriter{}
	if *auditFile != "" {
		auditWriter, err = audit.NewFileWriter(*auditFile, 100, 30, 10)
		if err != nil {
			logger.Fatal("Failed to create audit writer", zap.Error(err))
		}
		defer auditWriter.Close()
	}

	mx := metrics.New("entitlement")

	manager := lifecycle.NewManager(recordStore, policyStore,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(mx),
		lifecycle.WithAuditWriter(auditWriter),
	)

	restCfg := rest.DefaultConfig()
	restCfg.Port = *httpPort

	server, err := rest.New(restCfg, policyStore, recordStore, manager, override, mx, logger)
	if err != nil {
		logger.Fatal("Failed to create REST server", zap.Error(err))
	}

	errChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *gracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown did not complete cleanly", zap.Error(err))
		}
	}

	logger.Info("Server stopped successfully")
}

// initLogger initializes the zap logger
func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}
