package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"collabwiki/internal/app"
	"collabwiki/internal/article"
	"collabwiki/internal/auth"
	"collabwiki/internal/events"
	"collabwiki/internal/improv"
	"collabwiki/internal/logger"
	"collabwiki/internal/persona"
	"collabwiki/pkg/database"
	"collabwiki/pkg/utils"
)

func main() {
	cfg, err := utils.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr := logger.New(cfg.LogLevel)

	dbCfg := app.DatabaseConfig(cfg)
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	hub := events.NewHub(logr)
	svc, err := app.Build(cfg, db, hub, logr)
	if err != nil {
		log.Fatalf("wiring failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/ws", events.WSHandler(hub, cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logr.Error("readiness check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"llm":         cfg.LLM.Provider,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	auth.NewHandler(svc.Accounts).RegisterRoutes(router.Group("/auth"))

	api := router.Group("/api")
	article.NewHandler(svc.Articles, svc.Tokens, svc.Users).RegisterRoutes(api)
	persona.NewHandler(svc.Personas).RegisterRoutes(api)
	improv.NewHandler(svc.Improv).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Merges wait on the upstream model.
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
	}
	tcpSrv := events.NewServer(cfg.EventsAddr, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcpSrv.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("[api] HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[api] shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[api] server error: %v", err)
	}
	hub.Stop()
	log.Println("[api] servers stopped")
}
