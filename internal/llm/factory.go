package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	// MaxAttempts bounds rate-limit retries; zero keeps the default.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// New builds the configured generator wrapped with rate-limit retries.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case "", ProviderGemini:
		g, err = NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderOllama:
		g, err = NewOllama(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(g, WithMaxAttempts(cfg.MaxAttempts), WithRetryLogger(logger)), nil
}
