package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codesync/internal/config"
	"codesync/internal/database/db_client"
	"codesync/internal/http/http_server"
	"codesync/internal/redis/redis_client"
	"codesync/internal/redis/redis_functions"
	"codesync/internal/redis/watcher/roomwatcher"
	"codesync/internal/services/execution"
	"codesync/internal/services/rooms"
	"codesync/internal/session"
	"codesync/internal/syncactivity"
	"codesync/internal/syncparticipants"
	"codesync/internal/ws"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.String("backend", cfg.BroadcastBackend))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis + functions
	redisClient, err = redis_client.NewRedisClient(redis_client.Options{
		Host:     cfg.RedisHost,
		Port:     int(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDb,
	})
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := db_client.Migrate(ctx, pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 5. Collaborator services
	roomService := rooms.NewRoomService(redisClient, pgDb, cfg.RecordTTL)
	execService := execution.NewExecutionService(execution.Options{
		BaseURL:      cfg.Judge0URL,
		APIKey:       cfg.RapidAPIKey,
		APIHost:      cfg.RapidAPIHost,
		PollAttempts: cfg.ExecutePollAttempts,
		PollDelay:    cfg.ExecutePollDelay,
	})

	// 6. Hub + broadcast engine; with Redis, rooms are pinned per instance
	hub := ws.NewHub()
	var bc session.Broadcaster = hub
	var placement *ws.RedisPlacement
	if cfg.BroadcastBackend == config.BackendRedis {
		rb := ws.NewRedisBroadcaster(hub, redisClient, 4*cfg.WsSendBuffer)
		go rb.Run(ctx)
		bc = rb

		instance := cfg.InstanceID
		if instance == "" {
			instance = uuid.NewString()
		}
		placement = ws.NewRedisPlacement(redisClient, instance, cfg.PlacementTTL)
		Log.Info("placement", zap.String("instance", instance))
	}

	// 7. Realtime core + idle reaper
	coord := session.NewCoordinator(bc, session.Config{
		DefaultCode:      cfg.DefaultCode,
		DefaultLanguage:  cfg.DefaultLanguage,
		NegotiationGrace: cfg.NegotiationGrace,
	})
	go coord.Run(ctx)
	go session.NewReaper(coord, cfg.ReaperInterval, cfg.RoomRetention).Run(ctx)
	if placement != nil {
		go placement.Run(ctx, coord)
	}

	// 8. Background: record expiry, activity mirror, join journal
	go roomwatcher.Run(ctx, redisClient, roomService)
	syncactivity.Run(ctx, redisClient, pgDb, coord, roomService, syncactivity.Options{
		SyncEvery:  cfg.ActivitySyncInterval,
		PurgeEvery: cfg.RecordPurgeInterval,
		TTL:        cfg.RecordTTL,
	})
	syncparticipants.Run(ctx, redisClient, pgDb)

	// 9. WS server
	wsOpts := ws.Options{
		ReadLimit:      cfg.WsReadLimit,
		SendBuffer:     cfg.WsSendBuffer,
		AllowedOrigins: cfg.CorsAllowedOrigins,
	}
	if placement != nil {
		wsOpts.Placement = placement
	}
	wsSrv := ws.NewWsServer(hub, coord, roomService, wsOpts)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, http_server.Deps{
		WsSrv:          wsSrv,
		RoomService:    roomService,
		ExecService:    execService,
		DB:             pgDb,
		ICEServers:     cfg.ICEServers(),
		AllowedOrigins: cfg.CorsAllowedOrigins,
	})
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
