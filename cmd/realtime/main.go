package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uday68/commandgrid-sub003/internal/api"
	"github.com/uday68/commandgrid-sub003/internal/auth"
	"github.com/uday68/commandgrid-sub003/internal/config"
	"github.com/uday68/commandgrid-sub003/internal/connection"
	"github.com/uday68/commandgrid-sub003/internal/metrics"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/monitor"
	"github.com/uday68/commandgrid-sub003/internal/realtime"
	"github.com/uday68/commandgrid-sub003/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/realtime.local.yaml", "path to config file")
	rooms := flag.String("rooms", "", "comma-separated room ids to join")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting realtime client",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(*configPath, splitRooms(*rooms), logger); err != nil {
		logger.Error("realtime client failed", "error", err)
		os.Exit(1)
	}
	logger.Info("realtime client stopped")
}

func run(configPath string, rooms []string, logger *slog.Logger) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logger.With("instance_id", cfg.Instance.ID)
	logger.Info("configuration loaded",
		"ws_url", cfg.Server.WSURL,
		"rest_url", cfg.Server.RestURL,
		"storage", cfg.Storage.Driver,
	)

	creds, err := auth.LoadCredentials(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if err := creds.Validate(time.Now()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := api.NewClient(
		cfg.Server.RestURL,
		creds.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, time.Second),
		api.WithPingPath(cfg.Server.PingPath),
	)

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var prober monitor.Prober
	if !cfg.Monitor.Disabled {
		prober = apiClient
	}
	mon := monitor.New(monitor.Config{
		ProbeInterval: cfg.Monitor.ProbeInterval,
		ProbeTimeout:  cfg.Monitor.ProbeTimeout,
	}, prober, logger.With("component", "monitor"))

	conn := connection.NewManager(managerConfig(cfg), logger.With("component", "connection"),
		connection.WithHistory(apiClient),
	)
	defer conn.Disconnect()
	defer conn.WatchNetwork(mon)()

	rt := realtime.NewManager(store, apiClient, logger)
	defer rt.Close()
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start offline queue: %w", err)
	}
	defer rt.Watch(mon)()

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mon.Stop(shutdownCtx)
	}()

	m := metrics.New(metrics.DefaultNamespace)
	m.WatchConnection(conn)
	m.WatchOffline(rt)
	m.WatchNetwork(mon)
	defer m.Close()

	conn.OnStateChange(func(s model.ConnectionState) {
		logger.Info("connection state", "state", s.String())
	})

	console := newConsole(conn, rt, os.Stdout)
	for _, id := range rooms {
		if err := console.join(id); err != nil {
			return err
		}
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           newHealthHandler(conn, rt, mon, m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		// Retries continue in the background after a lost connection.
		if err := conn.Connect(gctx, creds); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial connect failed, retrying in background", "error", err)
		}
		// Operations restored from storage have not seen a reconnect yet.
		if len(rt.Pending()) > 0 && mon.Online() {
			if res, err := rt.SyncOfflineData(gctx); err != nil {
				logger.Warn("startup sync incomplete", "replayed", res.Replayed, "failed", res.Failed, "error", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		return console.run(gctx, os.Stdin)
	})

	logger.Info("realtime client running",
		"rooms", len(rooms),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	err = g.Wait()
	logger.Info("shutting down...")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// managerConfig maps file configuration onto the connection manager.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	c := cfg.Connection
	mc := connection.DefaultManagerConfig()
	mc.URL = cfg.Server.WSURL
	mc.ReconnectAttempts = c.ReconnectAttempts
	mc.ReconnectDelay = c.ReconnectDelay
	mc.ServerReconnectDelay = c.ServerReconnectDelay
	mc.BackgroundRetryInterval = c.BackgroundRetryInterval
	if c.DisableBackgroundRetry {
		mc.BackgroundRetryInterval = 0
	}
	mc.MaxPending = c.MaxPending
	mc.PendingTTL = c.PendingTTL
	mc.TypingThrottle = cfg.Session.TypingThrottle
	mc.TypingExpiry = cfg.Session.TypingExpiry

	mc.Transport.HandshakeTimeout = c.HandshakeTimeout
	mc.Transport.PingInterval = c.PingInterval
	mc.Transport.PingTimeout = c.PingTimeout
	mc.Transport.WriteTimeout = c.WriteTimeout
	mc.Transport.BufferSize = c.BufferSize
	return mc
}

func splitRooms(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
