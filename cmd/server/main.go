package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/bot"
	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/internal/config"
	"github.com/region23/servicedesk/internal/middleware"
	"github.com/region23/servicedesk/internal/scheduler/memory"
	"github.com/region23/servicedesk/internal/server"
	"github.com/region23/servicedesk/internal/service"
	"github.com/region23/servicedesk/internal/storage/sqlite"
	"github.com/region23/servicedesk/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "servicedesk: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.NewWithWriter(os.Stdout, level, cfg.Format == "console"), nil
}

func run() error {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	log.Info("Configuration loaded",
		logger.String("port", cfg.Server.Port),
		logger.Bool("bot_enabled", cfg.BotEnabled()),
		logger.Bool("auth_enabled", cfg.Server.AdminToken != "" || cfg.Server.AdminTokenHash != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	storage, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("Error closing storage", logger.Error(err))
		}
	}()
	log.Info("Storage initialized", logger.String("path", cfg.Database.Path))

	clock := clockwork.NewRealClock()

	hubCfg := server.DefaultHubConfig()
	hubCfg.MaxClients = cfg.Server.MaxLiveClients
	hub := server.NewHub(hubCfg, clock, log)

	timers := service.NewTimerService(storage, clock, log, hub)
	tasks := service.NewTaskService(storage, clock, log)

	deps := server.Deps{
		Config:  cfg,
		Timers:  timers,
		Tasks:   tasks,
		Storage: storage,
		Hub:     hub,
		Clock:   clock,
		Logger:  log,
	}

	if cfg.BotEnabled() {
		telegramBot, err := tgbot.New(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}

		chatLimiter := middleware.NewRateLimiter(cfg.Telegram.ChatRequestsPerMinute, time.Minute, clock, log)
		defer chatLimiter.Close()

		botService := botservice.NewService(telegramBot, timers, &cfg.Telegram, chatLimiter, log)
		deps.Dispatcher = bot.NewDispatcher(botService)
		deps.TelegramBot = telegramBot

		if err := setupWebhook(ctx, telegramBot, cfg.Telegram); err != nil {
			return fmt.Errorf("setup webhook: %w", err)
		}
		log.Info("Webhook configured", logger.String("url", cfg.Telegram.WebhookURL))

		if cfg.Timers.DeadlineNotify {
			scheduler := memory.NewMemoryScheduler(botService, clock, log)
			defer scheduler.Stop()
			timers.Subscribe(scheduler)

			// Перепланируем уведомления обратных таймеров
			list, err := timers.List(ctx)
			if err != nil {
				return fmt.Errorf("list timers: %w", err)
			}
			if err := scheduler.ReschedulePending(ctx, list); err != nil {
				log.Error("Failed to reschedule deadlines", logger.Error(err))
			} else {
				log.Info("Deadlines rescheduled", logger.Int("scheduled", scheduler.ActiveCount()))
			}
		}
	} else {
		log.Warn("TELEGRAM_TOKEN is empty, bot and deadline notifications are disabled")
	}

	srv, err := server.New(deps)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	log.Info("Server stopped gracefully")
	return nil
}

// setupWebhook регистрирует webhook с секретом, который проверяет сервер
func setupWebhook(ctx context.Context, b *tgbot.Bot, cfg config.TelegramConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := b.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.SecretToken,
	})
	return err
}
