package main

import (
	"net/http"
	"os"
	"time"

	"draftroom/config/database"
	"draftroom/internal/document/repository"
	"draftroom/internal/document/service"
	"draftroom/internal/identity"
	"draftroom/internal/syncadapter"
	"draftroom/pkg/logger"
	"draftroom/pkg/roomlock"
	"draftroom/router"
	"draftroom/socket"

	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	logger.Init()
	defer logger.Log.Sync()
	if envErr != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Sugar.Fatal("JWT_SECRET environment variable not set")
	}

	db := database.Connect()
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to bootstrap schema: %v", err)
	}

	gate := identity.NewGate([]byte(secret))
	repo := repository.NewDocumentRepository(db)
	locks := roomlock.New()
	adapter := syncadapter.New(repo, locks, gate, 10*time.Second)

	hub := socket.NewHub(adapter)
	go hub.Run()
	go hub.FlushWorker(10 * time.Second)

	svc := service.NewDocumentService(repo, adapter, hub)

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Sugar.Infof("draftroom listening on %s", addr)
	if err := http.ListenAndServe(addr, router.Setup(gate, svc, hub)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
