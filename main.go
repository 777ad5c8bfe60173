package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multipost-bot/internal/auth"
	"multipost-bot/internal/broadcast"
	"multipost-bot/internal/channels"
	"multipost-bot/internal/config"
	"multipost-bot/internal/database"
	"multipost-bot/internal/handlers"
	"multipost-bot/internal/locales"
	"multipost-bot/internal/subscription"

	appbot "multipost-bot/bot"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Connect to MongoDB
	client, db, err := database.ConnectDB(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Create repository instances
	userRepo := database.NewMongoUserRepository(db)
	channelRepo := database.NewMongoChannelRepository(db)
	deliveryRepo := database.NewMongoDeliveryRepository(db)
	actionLogger := database.NewMongoLogger(db)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the raw telego bot instance
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	updatesChan, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	// Posting-permission checker needs the bot's own identity
	postChecker, err := auth.NewPostChecker(ctx, bot)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create post checker: %v", err)
	}

	// Domain services
	channelSvc := channels.NewService(channelRepo, postChecker)
	subscriptionSvc := subscription.NewService(userRepo)

	// Broadcast pipeline: renderer -> dispatcher -> session manager
	renderer := broadcast.NewRenderer(bot, -1)
	dispatcher := broadcast.NewDispatcher(channelSvc, deliveryRepo, renderer, subscriptionSvc, -1)
	broadcastMgr, err := broadcast.NewManager(broadcast.ManagerDeps{
		Bot:        bot,
		Sessions:   broadcast.NewMemorySessionStore(),
		Dispatcher: dispatcher,
		Directory:  channelSvc,
		Usage:      subscriptionSvc,
		Langs:      userRepo,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Create message handler with dependencies
	messageHandler := handlers.NewMessageHandler(broadcastMgr, channelSvc, userRepo, actionLogger)

	// Create the bot wrapper
	appBot, err := appbot.New(appbot.BotDeps{
		Bot:          bot,
		UpdatesChan:  updatesChan,
		Debug:        cfg.Debug,
		Handler:      messageHandler,
		BroadcastMgr: broadcastMgr,
		ChannelSvc:   channelSvc,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Start the bot wrapper's processing loop in a separate goroutine
	go appBot.Start(ctx)

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	appBot.Stop()

	log.Println("Bot shutdown complete.")
}
