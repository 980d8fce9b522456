package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"stayprivate/internal/auth"
	"stayprivate/internal/config"
	"stayprivate/internal/handlers/apiserver"
	appKafka "stayprivate/internal/kafka"
	kafkahandlers "stayprivate/internal/kafka/handlers"
	"stayprivate/internal/logger"
	"stayprivate/internal/middleware"
	appRedis "stayprivate/internal/redis"
	"stayprivate/internal/services"
	"stayprivate/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("STAYPRIVATE_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogFormat == "json").With(zap.String("app", cfg.AppName))
	defer func() { _ = zlog.Sync() }()
	zlog.Info("API 服务器配置加载成功", zap.String("version", cfg.AppVersion), zap.String("database", cfg.Database.Type))

	ctx := context.Background()

	// 2. 初始化存储
	store, err := storage.Open(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("无法初始化存储", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			zlog.Error("关闭存储失败", zap.Error(err))
		}
	}()
	zlog.Info("存储连接成功")

	// 3. 初始化 Redis 和 TokenBlacklist
	var tokenBlacklist auth.TokenBlacklist
	if cfg.Redis.Enabled {
		redisClient, err := appRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			zlog.Fatal("无法连接到 Redis", zap.Error(err))
		}
		defer redisClient.Close()
		tokenBlacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		zlog.Info("成功连接到 Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		zlog.Warn("Redis 未启用，登出后令牌在过期前仍然有效")
	}

	// 4. 初始化 Kafka Producer
	producer := appKafka.NewNoopProducer()
	if cfg.Kafka.Enabled {
		producer, err = appKafka.NewConfluentKafkaProducer(cfg.Kafka, zlog.Named("kafka"))
		if err != nil {
			zlog.Fatal("无法创建 Kafka 生产者", zap.Error(err))
		}
		zlog.Info("Kafka 生产者初始化成功", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	defer producer.Close()
	events := services.NewKafkaEventPublisher(producer, cfg.Kafka.RelationshipTopic, zlog.Named("events"))

	// 5. 初始化 Services
	authService := services.NewAuthService(store.Users, cfg.Auth, tokenBlacklist, zlog)
	userService := services.NewUserService(store.Users, cfg.Search, zlog)
	relationshipService := services.NewRelationshipService(store.Users, store.Requests, events, zlog)
	messagingService := services.NewMessagingService(store.Users, store.Messages, cfg.Messaging, zlog)

	// 6. 初始化 Kafka 消费者：对 accepted 事件补齐双方的好友集合
	consumerCtx, cancelConsumers := context.WithCancel(ctx)
	defer cancelConsumers()
	var consumers sync.WaitGroup
	if cfg.Kafka.Enabled {
		consumer := appKafka.NewConfluentKafkaConsumer(cfg.Kafka, zlog.Named("kafka"))
		handler := kafkahandlers.NewRelationshipEventHandler(relationshipService, zlog)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			defer consumer.Close()
			topics := []string{cfg.Kafka.RelationshipTopic}
			err := consumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, handler.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("Kafka 关系事件消费者错误", zap.Error(err))
			}
			zlog.Info("Kafka 关系事件消费者已停止")
		}()
	}

	// 7. 初始化 Handlers 和路由
	router := apiserver.NewRouter(apiserver.Handlers{
		Auth:    apiserver.NewAuthHandler(authService, cfg.Auth, zlog),
		User:    apiserver.NewUserHandler(userService, zlog),
		Friend:  apiserver.NewFriendHandler(relationshipService, zlog),
		Message: apiserver.NewMessageHandler(messagingService, zlog),
		Health:  apiserver.NewHealthHandler(store, zlog),
	}, middleware.AuthMiddleware(cfg.Auth, tokenBlacklist, zlog))

	// 8. CORS
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(router)

	// 9. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(corsHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("API 服务器启动", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("API 服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("收到关闭信号，正在关闭 API 服务器...")

	cancelConsumers()
	consumers.Wait()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zlog.Error("API 服务器强制关闭", zap.Error(err))
		return
	}
	zlog.Info("API 服务器已成功关闭")
}
