package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"argmatch/internal/config"
	"argmatch/internal/dataset"
	"argmatch/internal/domain"
	"argmatch/internal/embedding"
	"argmatch/internal/embedding/cache"
	"argmatch/internal/logging"
	"argmatch/internal/model"
	"argmatch/internal/service"
	"argmatch/internal/tui"
	"argmatch/internal/vectorstore/memory"
	"argmatch/internal/vectorstore/qdrant"
	"argmatch/internal/workspace"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   string
		modelName string
		split     string
		noTUI     bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/argmatch/config.yaml if not provided)")
	flag.StringVar(&modelName, "model", "", "Name of the model folder under the models dir (defaults to embedder.model_name)")
	flag.StringVar(&split, "split", "dev", "Split to evaluate and index: train, test or dev")
	flag.BoolVar(&noTUI, "no-tui", false, "Print evaluation metrics and exit")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, modelName, split, noTUI); err != nil {
		logger.Error("argmatch failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *zap.Logger, modelName, split string, noTUI bool) error {
	file, err := splitFile(cfg.Splits, split)
	if err != nil {
		return err
	}
	if modelName == "" {
		modelName = cfg.Embedder.ModelName
	}

	m, err := embedding.New(cfg.Embedder, cfg.Training)
	if err != nil {
		return err
	}
	var emb domain.Embedder = m
	if cfg.Embedder.CachePath != "" {
		cached, err := cache.Open(cfg.Embedder.CachePath, m)
		if err != nil {
			return err
		}
		defer func() {
			hits, misses := cached.Stats()
			logger.Debug("embedding cache", zap.Int("hits", hits), zap.Int("misses", misses))
			_ = cached.Close()
		}()
		emb = cached
	}

	var index domain.KeyPointIndex
	switch cfg.VectorStore.Type {
	case "memory", "":
		index = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return fmt.Errorf("qdrant config missing")
		}
		index = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	layout := workspace.NewLayout(cfg.Paths, logger)
	svc := service.NewMatchService(service.Options{
		Layout:    layout,
		Loader:    dataset.NewLoader(cfg.Paths.DataDir, cfg.Schema, logger),
		Handle:    model.New(m, layout.ModelPath(modelName)),
		Embedder:  emb,
		Index:     index,
		Threshold: cfg.Evaluation.Threshold,
		Logger:    logger,
	})

	ctx := context.Background()
	if _, err := svc.PrepareModel(modelName, cfg.Splits.Train); err != nil {
		return err
	}
	res, err := svc.Evaluate(ctx, file, modelName+"-"+split)
	if err != nil {
		return err
	}
	met := res.Metrics
	summary := fmt.Sprintf("%s on %s: %d pairs, accuracy %.3f, precision %.3f, recall %.3f, F1 %.3f (threshold %.2f)",
		modelName, split, met.Total, met.Accuracy, met.Precision, met.Recall, met.F1, cfg.Evaluation.Threshold)
	if noTUI {
		fmt.Println(summary)
		fmt.Println("report:", res.ReportPath)
		return nil
	}

	if _, err := svc.IndexKeyPoints(ctx, file); err != nil {
		return err
	}
	if _, err := tea.NewProgram(tui.New(svc, cfg.Evaluation.TopK, summary)).Run(); err != nil {
		return err
	}
	return nil
}

func splitFile(splits config.SplitsConfig, split string) (string, error) {
	switch split {
	case "train":
		return splits.Train, nil
	case "test":
		return splits.Test, nil
	case "dev", "":
		return splits.Dev, nil
	default:
		return "", fmt.Errorf("unknown split: %s", split)
	}
}
