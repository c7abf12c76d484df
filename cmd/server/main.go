// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/soloqueue/inhouse/internal/auth"
	"github.com/soloqueue/inhouse/internal/cache"
	"github.com/soloqueue/inhouse/internal/core"
	"github.com/soloqueue/inhouse/internal/database"
	"github.com/soloqueue/inhouse/internal/gamenet"
	"github.com/soloqueue/inhouse/internal/handlers"
	"github.com/soloqueue/inhouse/internal/middleware"
	"github.com/soloqueue/inhouse/internal/models"
	"github.com/soloqueue/inhouse/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if priv, pub := os.Getenv("ADMIN_KEY_PRIVATE"), os.Getenv("ADMIN_KEY_PUBLIC"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			log.Fatalf("auth init from key files: %v", err)
		}
	} else if err := auth.Init(); err != nil {
		log.Fatalf("auth init: %v", err)
	}

	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis connect: %v", err)
	}

	pool := session.NewPool()
	c := core.New(database.NewStore(), cache.NewHistorian(nil), pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := c.Load(ctx); err != nil {
		log.Fatalf("core load: %v", err)
	}
	cancel()

	rateLimit := envDuration("SESSION_RATE_LIMIT_MS", 1500*time.Millisecond)
	backoff := envDuration("SESSION_BACKOFF_MS", 2000*time.Millisecond)

	dialBot := func(account models.BotAccount, token string) error {
		client := gamenet.NewWSClient(account.GatewayURL, account.AccountName, token)
		sess := session.NewController(account.AccountName, client, rateLimit, backoff)

		dialCtx, dialCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer dialCancel()
		if err := sess.Dial(dialCtx); err != nil {
			return err
		}
		pool.Add(sess)
		logger.Infof("session %s online for bot %s", sess.ID, account.AccountName)
		return nil
	}

	// Bring persisted bot accounts online. The shared gateway token
	// authenticates each session; a bot that fails to dial is skipped
	// and can be re-registered later.
	accounts, err := database.GetBotAccounts(context.Background())
	if err != nil {
		log.Fatalf("load bot accounts: %v", err)
	}
	gatewayToken := os.Getenv("GATEWAY_TOKEN")
	for _, account := range accounts {
		account := account
		go func() {
			if err := dialBot(account, gatewayToken); err != nil {
				logger.Warnf("bot %s dial failed: %v", account.AccountName, err)
			}
		}()
	}

	srv := handlers.NewServer(c)
	srv.OnBotRegistered = dialBot

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(srv.Routes())); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// envDuration reads a millisecond-valued environment variable.
func envDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	ms, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
