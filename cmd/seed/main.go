package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	appseed "github.com/voiceops-ai/callground/internal/application/seed"
	"github.com/voiceops-ai/callground/internal/config"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
	aiclient "github.com/voiceops-ai/callground/internal/infra/ai/openai"
	mysqlp "github.com/voiceops-ai/callground/internal/infra/db/mysql"
	postgresp "github.com/voiceops-ai/callground/internal/infra/db/postgres"
	"github.com/voiceops-ai/callground/internal/logger"
)

func main() {
	_ = godotenv.Load()

	var dir string
	flag.StringVar(&dir, "dir", "", "knowledge directory (defaults to config value)")
	flag.Parse()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	log := logger.New()

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if dir == "" {
		dir = cfg.Knowledge.Dir
	}

	ctx := context.Background()

	var kb knowledge.Store
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		kb = mysqlp.NewKnowledgeRepository(db)
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		kb = postgresp.NewKnowledgeRepository(db)
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}

	aiCli := aiclient.NewClient(config.OpenAIKey(), cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDim)

	svc := &appseed.Service{Knowledge: kb, Embedder: aiCli, Log: log}
	result, err := svc.SeedDir(ctx, dir)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	if len(result.Errors) > 0 {
		log.Warnf("seeding finished with %d errors", len(result.Errors))
	}
	log.Infof("seeded %d documents (%d total in store)", result.DocumentsProcessed, result.TotalInDB)
}
