// Package bot implements lifecycle management and component orchestration
// for the scout bot: the Telegram listener, the session controller, the
// scheduler, and the metrics endpoint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const disconnectTimeout = 10 * time.Second

// Listener receives Telegram updates until ctx is cancelled.
type Listener interface {
	Start(ctx context.Context)
}

// Runner is a component that runs until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Disconnecter is the scout client connection closed on shutdown.
type Disconnecter interface {
	IsConnected() bool
	Disconnect(ctx context.Context) error
}

// Option configures optional Bot components.
type Option func(*Bot)

// WithMetricsServer runs srv alongside the bot.
func WithMetricsServer(srv Runner) Option {
	return func(b *Bot) {
		b.metrics = srv
	}
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger     *slog.Logger
	listener   Listener
	scheduler  *Scheduler
	controller Runner
	directory  Disconnecter
	metrics    Runner
}

// NewBot creates a new instance of the bot with all required dependencies.
func NewBot(
	logger *slog.Logger,
	listener Listener,
	scheduler *Scheduler,
	controller Runner,
	directory Disconnecter,
	opts ...Option,
) *Bot {
	b := &Bot{
		logger:     logger.With("component", "bot_orchestrator"),
		listener:   listener,
		scheduler:  scheduler,
		controller: controller,
		directory:  directory,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		return b.controller.Run(gCtx)
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(gCtx); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.metrics != nil {
		g.Go(func() error {
			return b.metrics.Run(gCtx)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	b.disconnect()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) disconnect() {
	if b.directory == nil || !b.directory.IsConnected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := b.directory.Disconnect(ctx); err != nil {
		b.logger.Warn("Failed to disconnect the scout client", "error", err)
		return
	}
	b.logger.Info("Scout client disconnected.")
}
