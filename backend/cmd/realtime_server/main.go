package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"edufiliova/backend/config"
	"edufiliova/backend/internal/cache"
	"edufiliova/backend/internal/events"
	"edufiliova/backend/internal/handler"
	"edufiliova/backend/internal/httpapi/middleware"
	"edufiliova/backend/internal/mysqldb"
	"edufiliova/backend/internal/sessioncache"
	"edufiliova/backend/internal/ws"
)

func main() {
	var cfg config.RealtimeConfig
	if err := config.Load("realtimeConfig", &cfg); err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 单节点或集群都走 UniversalClient
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := mysqldb.Open(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := mysqldb.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// === 初始化 Kafka Producer ===
	var sink handler.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()

		pubOpts := events.DefaultPublisherOptions(cfg.Kafka.Topic)
		pubOpts.Limiter = events.NewSendLimiter(events.DefaultInflight)
		publisher := events.NewPublisher(producer, pubOpts)
		defer publisher.Close()
		sink = publisher
	} else {
		log.Printf("kafka brokers not configured, domain events disabled")
	}

	// 会话缓存 + 跨实例失效广播
	var cacheOpts []sessioncache.Option
	if cfg.Cache.ProgressTTL > 0 {
		cacheOpts = append(cacheOpts,
			sessioncache.WithPrefixTTL(sessioncache.PrefixProgress, cfg.Cache.ProgressTTL),
			sessioncache.WithPrefixTTL(sessioncache.PrefixSubjects, cfg.Cache.ProgressTTL),
			sessioncache.WithPrefixTTL(sessioncache.PrefixQuiz, cfg.Cache.ProgressTTL),
		)
	}
	if cfg.Cache.ChatTTL > 0 {
		cacheOpts = append(cacheOpts, sessioncache.WithPrefixTTL(sessioncache.PrefixChats, cfg.Cache.ChatTTL))
	}
	local := sessioncache.NewDefault(cacheOpts...)
	bus := sessioncache.NewBus(rdb)
	go func() {
		if err := bus.Run(ctx, local); err != nil && ctx.Err() == nil {
			log.Printf("session cache bus stopped: %v", err)
		}
	}()
	sessions := sessioncache.NewCoherent(local, bus)

	presence := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presence, cfg.Presence.TTL)
	manager := ws.NewManager(hub, cfg.Websocket.AllowedOrigins)

	h := handler.New(handler.Deps{
		Learning:     mysqldb.NewMySQLLearningRepo(db),
		Chats:        mysqldb.NewMySQLChatRepo(db),
		Appointments: mysqldb.NewMySQLAppointmentRepo(db),
		Presence:     presence,
		Cache:        sessions,
		Notifier:     hub,
		Events:       sink,
	})

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 关键：挂鉴权中间件（会从 Authorization 或 ?token= 提取 token，调用 /v1/auth/verify，并写入 userId/role）
	auth := middleware.AuthMiddleware(cfg.Auth.Path)
	h.Routes(r.Group("/api", auth))
	r.GET("/realtime/ws", auth, manager.WebSocketConnect)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "connectedUsers": hub.ConnectedUsers()})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Running.Port), Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	log.Printf("realtime server listening on %s (instance=%s)", srv.Addr, bus.InstanceID())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
