package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Temperature float64
	MaxTokens   int
}

// ChatEngine drives the generation model. Streaming responses are forwarded
// fragment by fragment in arrival order, without buffering.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewChatEngine wraps a generation model with call defaults.
func NewChatEngine(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Stream sends the prompt in streaming mode and invokes onToken for every
// incremental fragment. An onToken error aborts the generation call.
func (ce *ChatEngine) Stream(ctx context.Context, prompt string, onToken func(token string) error) error {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	_, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}
