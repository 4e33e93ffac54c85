package main

import (
	"context"
	"fmt"
	"log"

	"store-auth-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	userRepo := core.NewPgUserRepository(db)
	authService := core.NewRepositoryAuthService(userRepo)
	codec := core.NewTokenCodec(cfg, userRepo)
	metrics := core.NewAuthMetrics(redisClient)

	if err := core.BootstrapAdmin(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, authService, codec, metrics, db, core.RedisPinger(redisClient))

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting auth api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
