package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/claude/spotter/internal/bridge"
	"github.com/claude/spotter/internal/config"
	"github.com/claude/spotter/internal/contextevent"
	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/eventbus"
	"github.com/claude/spotter/internal/localstore"
	"github.com/claude/spotter/internal/logger"
	"github.com/claude/spotter/internal/mcp"
	"github.com/claude/spotter/internal/server"
	"github.com/claude/spotter/internal/sessioncache"
	"github.com/claude/spotter/internal/storage"
	"github.com/claude/spotter/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logger.New(cfg.Logging, os.Stdout)
	defer logCloser.Close()
	log.Info("Spotter starting", "version", Version, "driver", cfg.Database.Driver)

	ctx := context.Background()

	// Open session store
	var backend sessioncache.Backend
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		ls, err := localstore.Open(cfg.Database.Path)
		if err != nil {
			log.Error("failed to open sqlite store", "path", cfg.Database.Path, "error", err)
			os.Exit(1)
		}
		defer ls.Close()
		if *migrateOnly {
			log.Info("migrate-only: sqlite schema is current, exiting")
			return
		}
		backend = ls
	default:
		dsn := cfg.Database.DSN()
		version, err := storage.RunMigrations(dsn, "migrations")
		if err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied", "version", version)

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		backend = db
	}
	log.Info("database connected")

	store, err := sessioncache.New(backend, int64(cfg.Cache.MaxCostMB)<<20, cfg.Cache.TTL)
	if err != nil {
		log.Error("failed to create session cache", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var publisher contextevent.Publisher
	if cfg.NATS.URL != "" {
		bus, err := eventbus.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, log)
		if err != nil {
			log.Error("failed to connect nats", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		publisher = bus
		log.Info("event stream connected", "stream", cfg.NATS.Stream)
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = telemetry.NewMetrics()
		if err != nil {
			log.Error("failed to create metrics", "error", err)
			os.Exit(1)
		}
	}

	// Create engine and agent bridge
	hub := bridge.NewHub(log)
	eng := engine.New(engine.Options{
		Policy:         cfg.Session.Policy(),
		Store:          store,
		Bridge:         hub,
		Publisher:      publisher,
		Metrics:        metrics,
		DebounceDelay:  cfg.Session.DebounceDelay,
		WriteTimeout:   cfg.Session.WriteTimeout,
		AgentSyncDelay: cfg.Session.AgentSyncDelay,
		MusicStatus:    hub.MusicStatus,
	}, log)
	hub.SetStatusHandler(eng.SetVoiceAgentStatus)

	// Create server
	srv := server.New(eng, store, hub, cfg.Auth.APIKey, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcp.New(mcp.Local{Engine: eng}, Version, log)))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	// Flush pending adjustments before the store closes.
	if err := eng.Close(shutdownCtx); err != nil {
		log.Error("engine close error", "error", err)
	}
	store.Wait()
	log.Info("server stopped")
}
