package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	api "triage-backend/cmd/api"
	briefingDelivery "triage-backend/internal/briefing/delivery"
	briefingRepo "triage-backend/internal/briefing/repository"
	briefingUsecase "triage-backend/internal/briefing/usecase"
	deviceDelivery "triage-backend/internal/device/delivery"
	deviceRepo "triage-backend/internal/device/repository"
	"triage-backend/internal/item/capture"
	itemDelivery "triage-backend/internal/item/delivery"
	"triage-backend/internal/item/feed"
	itemRepo "triage-backend/internal/item/repository"
	"triage-backend/internal/item/session"
	itemUsecase "triage-backend/internal/item/usecase"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/chroma"
	"triage-backend/pkg/config"
	"triage-backend/pkg/database"
	"triage-backend/pkg/fcm"
	"triage-backend/pkg/imap"
	"triage-backend/pkg/lifecycle"
	"triage-backend/pkg/logger"
	"triage-backend/pkg/redisclient"
	"triage-backend/pkg/scheduler"
	"triage-backend/pkg/sse"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := lifecycle.New(cfg.ShutdownTimeout)
	shutdown.Listen(cancel)

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	shutdown.Register("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisclient.New(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	// Change feed, local fan-out plus an optional cross-instance relay
	hub := feed.NewHub(uuid.NewString())
	startRelay(ctx, cfg, hub, redisClient, shutdown)

	// Repositories
	store, err := itemRepo.NewGormItemRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate items")
	}
	items := itemRepo.NewNotifyingRepository(store, hub)

	var briefings briefingRepo.BriefingRepository
	if redisClient != nil {
		briefings = briefingRepo.NewRedisBriefingRepository(redisClient, 0)
	} else if briefings, err = briefingRepo.NewGormBriefingRepository(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate briefings")
	}

	tokens, err := deviceRepo.NewTokenRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate device tokens")
	}

	// AI
	ollama := ai.NewOllamaSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	completer, err := ai.NewCompleter(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		ClassifyModel:    cfg.ClassifyModel,
		BriefingModel:    cfg.BriefingModel,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		Ollama:           ollama,
		Timeout:          cfg.AITimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI provider")
	}
	aiService := ai.NewService(completer)
	log.Info().Str("provider", cfg.AIProvider).Msg("AI service initialized")

	// Sessions and their event streams
	sseManager := sse.NewManager()
	go sseManager.Run()

	sessions := session.NewManager(session.ManagerConfig{
		Items:      items,
		Hub:        hub,
		Classifier: aiService,
		Summarizer: aiService,
		Briefings:  briefings,
		Streams:    sseManager,
		Location:   cfg.TimeZone,
		IdleTTL:    cfg.SessionIdleTTL,
	})
	shutdown.Register("sse", func(context.Context) error {
		sseManager.Stop()
		return nil
	})
	shutdown.Register("sessions", sessions.Shutdown)

	inbound := capture.NewInbound(aiService, items, cfg.TimeZone)

	// Semantic search, optional
	var semantic itemUsecase.SemanticIndex
	if cfg.ChromaAPIKey != "" {
		index, err := chroma.NewIndex(ctx, chroma.Options{
			APIKey:       cfg.ChromaAPIKey,
			Tenant:       cfg.ChromaTenant,
			Database:     cfg.ChromaDatabase,
			GeminiAPIKey: cfg.GeminiAPIKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("chroma unavailable, semantic search disabled")
		} else {
			semantic = index
			indexer := itemUsecase.NewIndexer(index, store)
			sub := hub.Subscribe()
			go indexer.Follow(ctx, sub)
			go func() {
				if err := indexer.Backfill(ctx); err != nil {
					log.Warn().Err(err).Msg("semantic index backfill failed")
				}
			}()
			shutdown.Register("chroma", func(context.Context) error {
				sub.Close()
				return index.Close()
			})
		}
	} else {
		log.Warn().Msg("CHROMA_API_KEY not set, semantic search disabled")
	}
	search := itemUsecase.NewSearchUsecase(store, semantic)

	// Background jobs
	jobs := scheduler.New(cfg.TimeZone)
	if _, err := jobs.ScheduleInterval("session-reaper", time.Minute, func(ctx context.Context) {
		if n := sessions.ReapIdle(ctx); n > 0 {
			log.Info().Int("closed", n).Msg("reaped idle sessions")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule session reaper")
	}

	var pusher briefingUsecase.Pusher
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Warn().Err(err).Msg("FCM unavailable, push disabled")
		} else {
			pusher = fcmClient
		}
	}
	if pusher != nil && cfg.BriefingPushTime != "" {
		push := briefingUsecase.NewMorningPush(briefings, tokens, store, aiService, pusher, cfg.TimeZone)
		if _, err := jobs.ScheduleDaily("morning-briefing", cfg.BriefingPushTime, push.Run); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule morning briefing")
		}
	}

	if cfg.IMAPHost != "" {
		poller := capture.NewMailboxPoller(imap.NewClient(imap.Config{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.IMAPMailbox,
		}), inbound)
		if _, err := jobs.ScheduleInterval("mailbox-poll", cfg.IMAPPollInterval, func(ctx context.Context) {
			_, _ = poller.Poll(ctx)
		}); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule mailbox poll")
		}
	}

	jobs.Start()
	shutdown.Register("scheduler", jobs.Stop)

	// HTTP
	handler := api.NewHandler(api.Handlers{
		Items:    itemDelivery.NewItemHandler(aiService, inbound, search, cfg.TimeZone),
		Sessions: itemDelivery.NewSessionHandler(sessions, sseManager),
		Briefing: briefingDelivery.NewBriefingHandler(aiService, sessions),
		Devices:  deviceDelivery.NewDeviceHandler(tokens),
		Settings: api.NewSettingsHandler(ollama),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdown.Register("http", srv.Shutdown)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	if err := shutdown.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("shutdown finished with errors")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

// startRelay connects the hub to other instances when FEED_RELAY asks for it
func startRelay(ctx context.Context, cfg *config.Config, hub *feed.Hub, redisClient *goredis.Client, shutdown *lifecycle.Manager) {
	log := logger.Component("main")

	var relay feed.Relay
	switch cfg.FeedRelay {
	case "redis":
		if redisClient == nil {
			log.Fatal().Msg("FEED_RELAY=redis requires REDIS_URL")
		}
		relay = feed.NewRedisRelay(redisClient, cfg.FeedChannel)
	case "pubsub":
		r, err := feed.NewPubSubRelay(ctx, cfg.GoogleProjectID, cfg.GooglePubSubTopic, hub.Origin(), cfg.GoogleCredentials)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pub/sub relay")
		}
		relay = r
	case "none", "":
		log.Info().Msg("change feed is local to this instance")
		return
	default:
		log.Fatal().Str("relay", cfg.FeedRelay).Msg("unknown feed relay")
	}

	hub.SetRelay(relay)
	go func() {
		if err := relay.Run(ctx, hub.Deliver); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("relay", cfg.FeedRelay).Msg("feed relay stopped")
		}
	}()
	shutdown.Register("feed-relay", func(context.Context) error { return relay.Close() })
	log.Info().Str("relay", cfg.FeedRelay).Msg("change feed relay started")
}
