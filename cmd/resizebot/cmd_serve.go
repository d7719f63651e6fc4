package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/resizebot/internal/config"
	"github.com/user/resizebot/internal/dispatch"
	"github.com/user/resizebot/internal/fsm"
	"github.com/user/resizebot/internal/pipeline"
	"github.com/user/resizebot/internal/session"
	"github.com/user/resizebot/internal/source"
	"github.com/user/resizebot/internal/telegram"
	"github.com/user/resizebot/internal/transform"
)

// drainGrace bounds how long shutdown waits for in-flight pipeline runs.
const drainGrace = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resizebot daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "resizebot.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	client, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("create telegram client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Best-effort command menu registration, as the platform allows.
	if err := client.SetCommands(ctx, fsm.Commands()); err != nil {
		slog.Error("set command menu failed", "error", err)
	}

	// Webhook registration must match the delivery mode: polling refuses
	// to start while a webhook is registered.
	switch cfg.Mode {
	case config.ModeWebhook:
		if err := client.RegisterWebhook(ctx, cfg.Webhook.PublicURL); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
	default:
		if err := client.DeleteWebhook(ctx); err != nil {
			slog.Warn("delete webhook failed", "error", err)
		}
	}

	src, err := source.New(cfg, client, slog.Default())
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	pipe := pipeline.New(client, transform.NewFitter(), cfg.TempDir, slog.Default())
	dispatcher := dispatch.New(sessions, client, pipe, int64(cfg.MaxConcurrent), slog.Default())

	dispatcher.Start(ctx)

	// The source gets its own context so intake can be stopped ahead of
	// the dispatcher during shutdown.
	srcCtx, srcCancel := context.WithCancel(ctx)
	defer srcCancel()
	srcDone := make(chan error, 1)
	go func() {
		srcDone <- src.Run(srcCtx)
	}()
	go dispatcher.Consume(ctx, src.Events())

	slog.Info("resizebot started",
		"bot", client.Username(),
		"mode", cfg.Mode,
		"max_concurrent", cfg.MaxConcurrent,
		"log_level", cfg.LogLevel,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var srcErr error
	select {
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
		srcCancel()
		if err := <-srcDone; err != nil {
			slog.Error("event source shutdown error", "error", err)
		}
	case srcErr = <-srcDone:
		slog.Info("event source stopped", "error", srcErr)
	}

	// Intake is stopped; give in-flight runs a bounded grace period
	// before cancelling their context.
	if !dispatcher.WaitIdle(drainGrace) {
		slog.Warn("grace period expired, cutting off in-flight runs")
	}
	cancel()
	dispatcher.Stop()

	slog.Info("resizebot stopped")
	if srcErr != nil {
		return fmt.Errorf("event source: %w", srcErr)
	}
	return nil
}
