// Package main contains the entrypoint for the scout bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/edgard/scoutbot/internal/bot"
	"github.com/edgard/scoutbot/internal/bot/handlers"
	"github.com/edgard/scoutbot/internal/bot/tasks"
	"github.com/edgard/scoutbot/internal/config"
	"github.com/edgard/scoutbot/internal/database"
	"github.com/edgard/scoutbot/internal/directory"
	"github.com/edgard/scoutbot/internal/invite"
	"github.com/edgard/scoutbot/internal/limiter"
	"github.com/edgard/scoutbot/internal/logger"
	"github.com/edgard/scoutbot/internal/metrics"
	"github.com/edgard/scoutbot/internal/session"
	"github.com/edgard/scoutbot/internal/stats"
	"github.com/edgard/scoutbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and returns an
// exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Failed to load environment file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	zapLog, err := logger.NewZap(cfg.Logger.Level, cfg.Logger.JSON)
	if err != nil {
		log.Error("Failed to create MTProto logger", "error", err)
		return 1
	}
	defer func() { _ = zapLog.Sync() }()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	windowStore, closeWindow, err := newWindowStore(ctx, cfg)
	if err != nil {
		log.Error("Failed to connect to the limiter store", "addr", cfg.Limiter.RedisAddr, "error", err)
		return 1
	}
	defer closeWindow()
	lim := limiter.New(limiter.Config{
		DailyCap: cfg.Limits.DailyCap,
		BatchCap: cfg.Limits.BatchCap,
		Window:   cfg.Limits.Window,
	}, windowStore)

	mtproto := directory.NewTelegram(directory.TelegramConfig{
		APIID:       cfg.Directory.APIID,
		APIHash:     cfg.Directory.APIHash,
		SessionPath: cfg.Directory.SessionPath,
	}, log, zapLog, storedAccessHash(store))
	scout := directory.WithTimeout(mtproto, cfg.Directory.CallTimeout)

	engine := invite.NewEngine(store, scout, lim, log, invite.WithCooldown(cfg.Limits.Cooldown))
	exporter := stats.NewExporter(cfg.Stats.Dir, log)

	metrics.MustRegister()

	var controller *session.Controller
	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Updates: submitFunc(func(u session.Update) error { return controller.Submit(u) }),
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewTextHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	replier := telegram.NewReplier(tg, log)
	machine := session.NewMachine(session.Deps{
		Store:     store,
		Directory: scout,
		Limiter:   lim,
		Engine:    engine,
		Exporter:  exporter,
		Replier:   replier,
		Bots:      telegram.NewBotOpener(log),
		Phone:     cfg.Directory.Phone,
		Admins:    cfg.Telegram.AdminIDs,
		Messages:  cfg.Messages,
		Logger:    log,
	})
	controller = session.NewController(machine, cfg.Telegram.AdminIDs, replier, cfg.Messages, log, 0)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Exporter: exporter,
		Config:   cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var opts []bot.Option
	if cfg.Metrics.Addr != "" {
		opts = append(opts, bot.WithMetricsServer(metrics.NewServer(cfg.Metrics.Addr, log, store.Ping)))
	}
	app := bot.NewBot(log, tg, sched, controller, scout, opts...)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}

// submitFunc adapts a function to handlers.Submitter.
type submitFunc func(session.Update) error

func (f submitFunc) Submit(u session.Update) error { return f(u) }

// newWindowStore keeps the rolling invitation window in Redis when an
// address is configured, and in memory otherwise.
func newWindowStore(ctx context.Context, cfg *config.Config) (limiter.WindowStore, func(), error) {
	if cfg.Limiter.RedisAddr == "" {
		return limiter.NewMemoryStore(), func() {}, nil
	}

	rs, err := limiter.NewRedisStore(ctx, limiter.RedisConfig{
		Addr:     cfg.Limiter.RedisAddr,
		Password: cfg.Limiter.RedisPassword,
		DB:       cfg.Limiter.RedisDB,
		Key:      cfg.Limiter.RedisKey,
		TTL:      2 * cfg.Limits.Window,
	})
	if err != nil {
		return nil, nil, err
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			slog.Warn("Failed to close limiter store", "error", err)
		}
	}, nil
}

// storedAccessHash resolves users the scout client has not seen in this
// process from the hashes saved at import time.
func storedAccessHash(store database.Store) directory.PeerLookup {
	return func(ctx context.Context, userID int64) (int64, bool, error) {
		rec, err := store.Find(ctx, userID)
		if err != nil || rec == nil {
			return 0, false, err
		}
		return rec.AccessHash, rec.AccessHash != 0, nil
	}
}
