package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voiceops-ai/callground/internal/application"
	appchat "github.com/voiceops-ai/callground/internal/application/chat"
	apppipeline "github.com/voiceops-ai/callground/internal/application/pipeline"
	appreport "github.com/voiceops-ai/callground/internal/application/report"
	appseed "github.com/voiceops-ai/callground/internal/application/seed"
	"github.com/voiceops-ai/callground/internal/config"
	"github.com/voiceops-ai/callground/internal/domain/audit"
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
	aiclient "github.com/voiceops-ai/callground/internal/infra/ai/openai"
	"github.com/voiceops-ai/callground/internal/infra/audit/backboard"
	mysqlp "github.com/voiceops-ai/callground/internal/infra/db/mysql"
	postgresp "github.com/voiceops-ai/callground/internal/infra/db/postgres"
	"github.com/voiceops-ai/callground/internal/infra/httpserver"
	minioStore "github.com/voiceops-ai/callground/internal/infra/storage"
	"github.com/voiceops-ai/callground/internal/logger"
	"github.com/voiceops-ai/callground/internal/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	log := logger.New()

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (postgres with pgvector by default)
	var db *sql.DB
	var calls domain.Repository
	var kb knowledge.Store
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		calls = mysqlp.NewCallRepository(db)
		kb = mysqlp.NewKnowledgeRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		calls = postgresp.NewCallRepository(db)
		kb = postgresp.NewKnowledgeRepository(db)
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// OpenAI client serves both embedding and generation
	aiCli := aiclient.NewClient(config.OpenAIKey(), cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDim)

	// audit side-channel is optional
	var trail audit.Trail
	if cfg.Audit.Enabled {
		trail = backboard.NewClient(cfg.Audit.BaseURL, config.AuditKey())
	}

	pipelineSvc := &apppipeline.Service{
		Calls:     calls,
		Knowledge: kb,
		Embedder:  aiCli,
		Generator: aiCli,
		Audit:     trail,
		Clock:     application.SystemClock{},
		Log:       log,
		Cfg: apppipeline.Config{
			Limits: apppipeline.Limits{
				FraudPatterns:  cfg.Retrieval.FraudPatterns,
				Compliance:     cfg.Retrieval.Compliance,
				RiskHeuristics: cfg.Retrieval.RiskHeuristics,
			},
			CategoryTimeout:    time.Duration(cfg.Retrieval.CategoryTimeoutMS) * time.Millisecond,
			ContextBudget:      cfg.Retrieval.ContextBudget,
			Buckets:            apppipeline.BucketPolicy{LowMax: cfg.Status.LowMax, MediumMax: cfg.Status.MediumMax},
			AuditCreateTimeout: time.Duration(cfg.Audit.CreateTimeoutMS) * time.Millisecond,
		},
	}

	chatSvc := &appchat.Service{
		Knowledge: kb,
		Calls:     calls,
		Embedder:  aiCli,
		Generator: aiCli,
		Log:       log,
		Cfg: appchat.Config{
			CategoryTimeout: time.Duration(cfg.Retrieval.CategoryTimeoutMS) * time.Millisecond,
			Model:           cfg.OpenAI.ChatModel,
		},
	}

	seedSvc := &appseed.Service{Knowledge: kb, Embedder: aiCli, Log: log}

	// report export is optional, gated on object storage config
	var reportSvc *appreport.Service
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		reportSvc = &appreport.Service{Calls: calls, Store: store, Log: log}
	}

	health := middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	})

	mux := httpserver.NewRouter(pipelineSvc, chatSvc, seedSvc, reportSvc, calls, trail, cfg.Knowledge.Dir, health, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
