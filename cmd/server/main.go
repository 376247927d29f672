package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/controller"
	apirepository "github.com/gp1080/MrGamePlayer-sub001/internal/api/repository"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/service"
	"github.com/gp1080/MrGamePlayer-sub001/internal/broadcast"
	"github.com/gp1080/MrGamePlayer-sub001/internal/coordinator"
	"github.com/gp1080/MrGamePlayer-sub001/internal/db"
	"github.com/gp1080/MrGamePlayer-sub001/internal/logger"
	"github.com/gp1080/MrGamePlayer-sub001/internal/registry"
	"github.com/gp1080/MrGamePlayer-sub001/internal/repository"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
	"github.com/gp1080/MrGamePlayer-sub001/internal/server"
	"github.com/gp1080/MrGamePlayer-sub001/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel()
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	logger.Init()

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}

	// Initialize SQLite DB
	pool, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to get sqlite db connection: %v", err)
	}
	if err := db.Initialize(pool); err != nil {
		log.Fatalf("failed to initialize sqlite db: %v", err)
	}

	// Create repositories
	chatRepo := repository.NewChatRepository(rdb)
	presenceRepo := repository.NewPresenceRepository(rdb)
	accountRepo := apirepository.NewAccountRepository(pool)

	// Create services
	accountService := service.NewAccountService(accountRepo)

	// Create controllers
	accountController := controller.NewAccountController(accountService)

	// Create the coordinator
	reg := registry.New()
	dir := room.NewDirectory()
	engine := broadcast.New(reg, dir)
	coord := coordinator.New(reg, dir, engine, chatRepo, presenceRepo)
	go coord.Run(ctx)

	// Create the Gin-based server
	srv := server.NewServer(coord, dir, accountController)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Engine(),
	}

	go func() {
		log.Printf("http server started on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	log.Println("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
