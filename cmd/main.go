package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"englishtutor/internal/api"
	"englishtutor/internal/chat"
	"englishtutor/internal/curriculum"
	"englishtutor/internal/evaluations"
	"englishtutor/internal/llm"
	"englishtutor/internal/middleware"
	"englishtutor/internal/prompts"
	"englishtutor/internal/sessions"
	"englishtutor/internal/tokenusage"
	"englishtutor/internal/users"
	"englishtutor/pkg/config"
	"englishtutor/pkg/db"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func main() {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	cfg := config.LoadConfig()

	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(context.Background(), database); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	llmClient := llm.NewClient(cfg)

	userRepo := users.NewRepository(database)
	userService := users.NewService(userRepo)

	promptRepo := prompts.NewRepository(database)
	promptService := prompts.NewService(promptRepo)

	curriculumRepo := curriculum.NewRepository(database)
	curriculumService := curriculum.NewService(curriculumRepo)

	sessionRepo := sessions.NewRepository(database)
	sessionService := sessions.NewService(sessionRepo)

	usageRepo := tokenusage.NewRepository(database)
	usageService := tokenusage.NewService(usageRepo)

	evaluationRepo := evaluations.NewRepository(database)
	evaluationService := evaluations.NewService(evaluationRepo)

	controller := chat.NewController(sessionService, userService, curriculumService, llmClient, promptService)

	apiHandler := api.NewHandler(
		userService,
		sessionService,
		controller,
		promptService,
		curriculumService,
		usageService,
		evaluationService,
		llmClient,
		llmClient,
		cfg.JWTSigningKey,
		cfg.AudioDir,
	)

	router := chi.NewRouter()
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Mount("/api", apiHandler.Routes())

	server := &http.Server{
		Addr:    cfg.ServerHost + ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logrus.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Failed to shut down server: %v", err)
	}

	logrus.Info("Server stopped")
}
