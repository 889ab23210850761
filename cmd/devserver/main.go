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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/anonsocial/anon/internal/db"
	routes "github.com/anonsocial/anon/internal/http"
	"github.com/anonsocial/anon/internal/models"
	"github.com/anonsocial/anon/internal/ws"
)

// devserver runs the Anon backend locally so the client can be exercised
// end to end without the hosted deployment.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	database, err := db.Init()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Println("Running database migrations...")
	if err := database.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Vote{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.SessionToken{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	router := gin.New()
	routes.SetupRoutes(router, database, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Dev server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
