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
	"syscall"
	"time"

	"github.com/uday68/commandgrid-sub003/internal/devserver"
	"github.com/uday68/commandgrid-sub003/internal/version"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	secret := flag.String("secret", os.Getenv("DEVSERVER_SECRET"), "HS256 secret; empty accepts any bearer token")
	issue := flag.String("issue", "", "print a signed token for this subject and exit")
	name := flag.String("name", "", "display name for -issue")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of tokens printed with -issue")
	history := flag.Int("history", 50, "messages kept per room")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if *issue != "" {
		if *secret == "" {
			logger.Error("-issue requires -secret")
			os.Exit(1)
		}
		token, err := devserver.SignToken([]byte(*secret), *issue, *name, *ttl)
		if err != nil {
			logger.Error("failed to sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger.Info("starting devserver", "version", version.String(), "addr", *addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := devserver.New(devserver.Config{
		Secret:       []byte(*secret),
		HistoryLimit: *history,
	}, logger)

	server := &http.Server{
		Addr:              *addr,
		Handler:           hub,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("shutting down...")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	logger.Info("devserver stopped")
}
