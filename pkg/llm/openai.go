package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// ClientConfig configures the OpenAI-compatible client shared by embedding
// and generation.
type ClientConfig struct {
	APIKey         string
	BaseURL        string // optional, for OpenAI-compatible endpoints
	Model          string
	EmbeddingModel string
}

// NewClient builds the langchaingo OpenAI client. The returned *openai.LLM
// serves both as the embedding capability (CreateEmbedding) and the
// generation model (GenerateContent).
func NewClient(config ClientConfig) (*openai.LLM, error) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-ada-002"
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}
