package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"

	"collabwiki/internal/app"
	"collabwiki/internal/grpcserver"
	"collabwiki/internal/logger"
	"collabwiki/pkg/database"
	"collabwiki/pkg/utils"
)

func main() {
	cfg, err := utils.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr := logger.New(cfg.LogLevel)

	db := database.MustOpen(app.DatabaseConfig(cfg))
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	svc, err := app.Build(cfg, db, nil, logr)
	if err != nil {
		log.Fatalf("wiring failed: %v", err)
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen failed: %v", err)
	}

	grpcServer, health := grpcserver.New(svc.Articles, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Println("[grpc] shutting down")
		health.Shutdown()
		grpcServer.GracefulStop()
	}()

	log.Printf("[grpc] server listening on %s", cfg.GRPCAddr)
	if err := grpcServer.Serve(listener); err != nil {
		log.Fatalf("grpc server stopped: %v", err)
	}
}
