package embedding

import (
	"fmt"
	"time"

	"argmatch/internal/config"
	"argmatch/internal/domain"
	"argmatch/internal/embedding/openai"
	"argmatch/internal/embedding/tfidf"
	"argmatch/internal/model"
)

// Model is an embedder whose state can be saved to and loaded from a folder.
type Model interface {
	domain.Embedder
	model.Persistable
}

// New builds the embedder selected by cfg.
func New(cfg config.EmbedderConfig, training config.TrainingConfig) (Model, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(training.MaxSeqLength), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
