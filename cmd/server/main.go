package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/textilelaunch/launchpad/internal/config"
	"github.com/textilelaunch/launchpad/internal/crypto"
	"github.com/textilelaunch/launchpad/internal/database"
	"github.com/textilelaunch/launchpad/internal/handler"
	"github.com/textilelaunch/launchpad/internal/middleware"
	"github.com/textilelaunch/launchpad/internal/queue"
	"github.com/textilelaunch/launchpad/internal/repository"
	"github.com/textilelaunch/launchpad/internal/router"
	queue_publisher "github.com/textilelaunch/launchpad/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	cipher, err := crypto.New(cfg.CipherSecret)
	if err != nil {
		log.Fatalf("credential cipher: %v", err)
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	settings := repository.NewSettingsRepo(db)
	affiliates := repository.NewAffiliateRepo(db)

	authn := &middleware.Authenticator{
		Secret:   cfg.JWTSecret,
		Env:      cfg.Env,
		Users:    users,
		Sessions: sessions,
		Settings: settings,
		OnOrphanSession: func(sessionID, userID string) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = queue_publisher.PublishAuthEvent(ctx, queue.AuthEvent{
					Type:      queue.EventOrphanSession,
					UserID:    userID,
					SessionID: sessionID,
					At:        time.Now().UTC().Format(time.RFC3339),
				})
			}()
		},
	}

	// Redis may be absent in development; the limiter degrades to a no-op.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; login rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Audit-trail consumer runs for the lifetime of the process and
	// reconnects on its own.
	go func() {
		if err := queue.StartAuthConsumer(); err != nil {
			log.Printf("auth consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, router.Deps{
		Auth:         handler.NewAuthHandler(cfg, users, sessions, settings),
		Integrations: handler.NewIntegrationHandler(affiliates, cipher),
		APIKeys:      handler.NewAPIKeyHandler(settings),
		Authn:        authn,
		LoginLimiter: limiter,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
