package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billsplit_bot/internal/app"
	"billsplit_bot/internal/infra/config"
	idb "billsplit_bot/internal/infra/database"
	"billsplit_bot/internal/infra/logger"
	"billsplit_bot/internal/infra/scheduler"
	"billsplit_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithFields(map[string]interface{}{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminChatID,
	}).Info("Configuration loaded")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	// Initialize Repositories and the transaction feed
	requestRepo := idb.NewPostgresRequestRepository(db)
	txSource := idb.NewPostgresTransactionSource(db)
	mainLogger.Info("Request repository and transaction source initialized")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(map[string]interface{}{
					"message":   c.Text(),
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Initialize services
	msgClient := telegram.NewTelebotAdapter(bot)
	resolver := app.NewDynamicAmountResolver(txSource, requestRepo, cfg.DynamicLookbackDays,
		logger.Log.WithField("component", "dynamic_amount"))
	recurringService := app.NewRecurringService(requestRepo, resolver, msgClient, cfg.DueLeniency,
		logger.Log.WithField("component", "recurring_service"))
	reminderService := app.NewReminderService(requestRepo, msgClient,
		logger.Log.WithField("component", "reminder_service"))
	paymentService := app.NewPaymentService(requestRepo,
		logger.Log.WithField("component", "payment_service"))
	cadenceService := app.NewCadenceService(txSource, requestRepo, cfg.CadenceLookbackDays,
		logger.Log.WithField("component", "cadence_service"))
	adminService := app.NewAdminService(requestRepo, cfg.AdminChatID)
	mainLogger.Info("Application services initialized")

	// Initialize and start the scheduler runner
	runner := scheduler.NewRunner(recurringService, reminderService,
		logger.Log.WithField("component", "scheduler"),
		cfg.CronSpecRecurring, cfg.CronSpecReminder)
	if err := runner.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start scheduler runner: %v", err)
	}

	// Register Handlers
	ctx := context.Background()
	telegram.RegisterBotCommands(ctx, bot, cfg, requestRepo, logger.Log.WithField("component", "bot_commands"))
	telegram.RegisterPaymentResponseHandlers(ctx, bot, paymentService)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cadenceService, runner, cfg.AdminChatID,
		logger.Log.WithField("component", "admin_handlers"))
	mainLogger.Info("Command and callback handlers registered")

	mainLogger.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	runner.Stop()
	// db.Close() is handled by defer
	mainLogger.Info("Application shut down gracefully")
}
