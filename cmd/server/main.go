package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow/server/config"
	"dealflow/server/internal/api"
	"dealflow/server/internal/assistant"
	"dealflow/server/internal/auth"
	"dealflow/server/internal/crm"
	"dealflow/server/internal/database"
	"dealflow/server/internal/llm"
	"dealflow/server/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("Unknown log level, using info")
	}
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Initialize database
	logger.WithField("driver", cfg.Database.Driver).Info("Opening database")
	db, err := database.NewDatabase(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	if cfg.AI.APIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY is not set, AI endpoints will fail")
	}
	completer := llm.NewAnthropicCompleter(llm.Config{
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	})

	crmService := crm.NewService(db.GetDB(), auth.NewHasher(cfg.Auth.BcryptCost), logger)
	assistantService := assistant.NewService(db.GetDB(), completer, cfg.AI.MaxTokens, logger)
	jobs := scheduler.NewScheduler(logger, cfg.Jobs.Timeout)
	jobs.Add(scheduler.Job{
		Name:       "rescore_open_leads",
		Every:      cfg.Jobs.RescoreInterval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			changed, err := crmService.RescoreOpenLeads(ctx)
			if err != nil {
				return err
			}
			logger.WithField("changed", changed).Info("Lead scores refreshed")
			return nil
		},
	})
	jobs.Start()
	defer jobs.Stop()

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)

	gin.SetMode(cfg.Server.GinMode)
	handler := api.NewHandler(crmService, assistantService, tokens, logger)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
}
