package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"deepdive/internal/bootstrap"
	"deepdive/internal/delivery/vk"
	"deepdive/internal/logging"
	"deepdive/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("bot stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	vkAPI, lp, err := vk.Connect(cfg.VKToken, cfg.VKGroupID)
	if err != nil {
		return err
	}
	vk.NewHandler(vkAPI, app.Sparring, app.Sessions, log).Start(lp)

	errCh := make(chan error, 1)
	go func() { errCh <- lp.Run() }()
	log.Info("vk bot started", zap.Int("group_id", cfg.VKGroupID))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		lp.Shutdown()
		return nil
	}
}
