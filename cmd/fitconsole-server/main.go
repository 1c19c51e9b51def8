package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/claude/fitconsole/internal/app"
	"github.com/claude/fitconsole/internal/config"
	"github.com/claude/fitconsole/internal/docstore"
	"github.com/claude/fitconsole/internal/mcp"
	"github.com/claude/fitconsole/internal/server"
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

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("FitConsole server starting", "version", Version)

	// Event store: Postgres when configured, otherwise in memory
	ctx := context.Background()
	var docs docstore.Store
	if cfg.Database.Enabled() {
		dsn := cfg.Database.DSN()
		if err := docstore.RunMigrations(dsn, cfg.Database.Migrations); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		pg, err := docstore.NewPGStore(ctx, dsn, log)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		docs = pg
		log.Info("database connected")
	} else {
		if *migrateOnly {
			log.Error("migrate-only needs database.host")
			os.Exit(1)
		}
		docs = docstore.NewMemoryStore()
		log.Info("using in-memory event store")
	}
	defer docs.Close()

	// Clients and the signed-in user
	a, err := app.Open(cfg, log)
	if err != nil {
		log.Error("failed to open local state", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	user, err := a.Resume(ctx)
	if err != nil {
		log.Error("no signed-in user; run `fitconsole login` with the same state dir", "error", err)
		os.Exit(1)
	}
	log.Info("signed in", "uid", user.UID)
	if resp, err := a.Bridge.CreateSession(ctx, user); err != nil {
		log.Warn("creating backend session failed", "error", err)
	} else if !resp.OK() {
		log.Warn("creating backend session failed", "status", resp.Status)
	}

	// Create server
	srv := server.New(a.Auth, a.API, a.Bridge, docs, server.Options{
		CORSOrigins:      cfg.Server.CORSOrigins,
		SessionRateLimit: cfg.Server.SessionRateLimit,
	}, log)
	srv.SetMCP(mcp.HTTPHandler(mcp.New(mcp.NewLocal(a.API, log), Version, log)))

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
	if resp, err := a.Bridge.CloseSession(shutdownCtx, a.Auth.CurrentUser()); err != nil {
		log.Warn("closing backend session failed", "error", err)
	} else if !resp.OK() {
		log.Warn("closing backend session failed", "status", resp.Status)
	}
	log.Info("server stopped")
}
