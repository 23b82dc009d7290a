package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmarchetti/votemon/internal/applog"
	"github.com/mmarchetti/votemon/internal/cocon"
	"github.com/mmarchetti/votemon/internal/config"
	"github.com/mmarchetti/votemon/internal/monitor"
	"github.com/mmarchetti/votemon/internal/projector"
	"github.com/mmarchetti/votemon/internal/webserver"
)

func main() {
	// optional .env next to the binary; real env vars win
	godotenv.Load()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}

	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default() // falls back to default (stderr)
	} else {
		defer logCloser.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := cocon.NewClient(cocon.Config{
		Host: cfg.CoCon.Host,
		Port: cfg.CoCon.Port,
	}, logger)
	if err := client.Connect(ctx); err != nil {
		// not fatal: the client keeps retrying and the page shows the
		// waiting placeholder until the room server appears
		logger.Error("cocon connect failed", "host", cfg.CoCon.Host, "port", cfg.CoCon.Port, "err", err)
	}

	proj := projector.New(cfg.RoomName, cfg.ColumnLines)
	srv := webserver.New(webserver.Config{
		Host: cfg.Webserver.Host,
		Port: cfg.Webserver.Port,
	}, logger)
	mon := monitor.New(client, proj, srv, logger)

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: could not start webserver: %v\n", err)
		os.Exit(1)
	}
	mon.Start()
	logger.Info("votemon started",
		"room", cfg.RoomName,
		"http", fmt.Sprintf("%s:%d", cfg.Webserver.Host, cfg.Webserver.Port),
		"cocon", fmt.Sprintf("%s:%d", cfg.CoCon.Host, cfg.CoCon.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	mon.Stop()
	client.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("webserver shutdown failed", "err", err)
	}
}
