package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"AProject/global/config"
	"AProject/logger"
	gwauth "AProject/module/auth"
	"AProject/service/auth"
	"AProject/service/events"
	"AProject/service/presence"
	"AProject/service/rpc"
	"AProject/service/storage"
	"AProject/service/storage/mgo"
	redisstore "AProject/service/storage/redis"
	"AProject/tools/security"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	switch cfg.NodeType {
	case config.NodeTypeAPIGateway:
		runGateway(cfg)
	case config.NodeTypeAuthNode:
		runAuthNode(cfg)
	default:
		logger.Errorf("unknown node type: %s", cfg.NodeType)
		os.Exit(1)
	}
}

// runGateway 网关节点：HTTP 入口，认证操作经 broker 转发。
func runGateway(cfg *config.AppConfig) {
	nc, err := rpc.Connect(rpc.ConnConfig{
		Servers: cfg.Nats.Servers,
		Name:    cfg.Nats.Name + "-gateway",
		Timeout: cfg.Nats.Timeout,
	})
	if err != nil {
		logger.Errorf("connect nats: %v", err)
		os.Exit(1)
	}
	defer nc.Drain()

	client := rpc.NewClient(nc)
	client.ResponseTimeout = cfg.RPC.ResponseTimeout
	client.MessageExpiration = cfg.RPC.MessageExpiration

	caller := rpc.NewSyncCaller(client)
	caller.Attempts = cfg.RPC.Retries

	rm, err := redisstore.NewManager(redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Errorf("connect redis: %v", err)
		os.Exit(1)
	}
	defer rm.Close()

	sessions := storage.NewSessionStore(rm.Client())

	r := gin.Default()
	gwauth.RegisterRoutes(r, gwauth.Deps{
		Caller:   caller,
		Sessions: sessions,
		Timeout:  cfg.RPC.ResponseTimeout,
	})

	logger.Infof("gateway node %s listening on :%d", cfg.NodeID, cfg.HTTPPort)
	if err := r.Run(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil {
		logger.Errorf("http server: %v", err)
		os.Exit(1)
	}
}

// runAuthNode 认证节点：队列 worker + 在线状态调度。
func runAuthNode(cfg *config.AppConfig) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := rpc.Connect(rpc.ConnConfig{
		Servers: cfg.Nats.Servers,
		Name:    cfg.Nats.Name + "-auth",
		Timeout: cfg.Nats.Timeout,
	})
	if err != nil {
		logger.Errorf("connect nats: %v", err)
		os.Exit(1)
	}
	defer nc.Drain()

	rm, err := redisstore.NewManager(redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Errorf("connect redis: %v", err)
		os.Exit(1)
	}
	defer rm.Close()
	sessions := storage.NewSessionStore(rm.Client())

	users, err := mgo.NewUserStore(ctx, mgo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		logger.Errorf("connect mongo: %v", err)
		os.Exit(1)
	}
	defer users.Close(context.Background())

	var sink events.Sink = events.NopSink{}
	if cfg.Kafka.Enabled {
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PresenceTopic)
		if err != nil {
			logger.Warnf("kafka disabled, producer init failed: %v", err)
		} else {
			defer producer.Close()
			sink = producer
		}
	}

	tokenOpts := security.Options{
		Secret: []byte(cfg.Token.Secret),
		Alg:    cfg.Token.Alg,
		TTL:    cfg.Token.TTL,
	}

	svc := auth.NewService(users, sessions, tokenOpts, sink)
	consumer := auth.NewConsumer(nc, svc)
	if err := consumer.Start(); err != nil {
		logger.Errorf("start consumer: %v", err)
		os.Exit(1)
	}
	defer consumer.Close()

	sweeper := presence.NewSweeper(sessions, func(token string) (security.Claims, error) {
		return security.Decode(tokenOpts, token)
	}, sink, cfg.Presence.InactivityTimeout)
	syncer := presence.NewSyncer(sessions, users)

	gate := &presence.Gate{
		Sessions:      sessions,
		Sched:         presence.NewScheduler(),
		Interval:      cfg.Presence.GateInterval,
		SweepInterval: cfg.Presence.SweepInterval,
		SyncInterval:  cfg.Presence.SyncInterval,
		SweepJob:      sweeper.Sweep,
		SyncJob:       syncer.Sync,
	}

	logger.Infof("auth node %s running", cfg.NodeID)
	gate.Run(ctx)
	logger.Info("auth node stopped")
}
