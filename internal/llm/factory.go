package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type constructor func(ctx context.Context, cfg Config) (Provider, error)

var constructors = map[string]constructor{
	"anthropic": func(_ context.Context, cfg Config) (Provider, error) {
		return NewAnthropicProvider(cfg.Anthropic)
	},
	"openai": func(_ context.Context, cfg Config) (Provider, error) {
		return NewOpenAIProvider(cfg.OpenAI)
	},
	"gemini": func(ctx context.Context, cfg Config) (Provider, error) {
		return NewGeminiProvider(ctx, cfg.Gemini)
	},
	"openrouter": func(_ context.Context, cfg Config) (Provider, error) {
		return NewOpenRouterProvider(cfg.OpenRouter)
	},
}

// NewProvider builds the configured backend and stacks the middleware on
// it: caller → retry → logging → timeout → backend. Each retry attempt is
// therefore logged and recorded on its own, and each gets a fresh timeout.
// The mock provider is returned bare.
func NewProvider(ctx context.Context, cfg Config, recorder EventRecorder, log *zap.Logger) (Provider, error) {
	if cfg.Provider == "mock" {
		return NewMockProvider(), nil
	}
	build, ok := constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	base, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	p := WithTimeout(base, cfg.Timeout)
	p = withProviderName(WithLogging(p, recorder, log), cfg.Provider)
	return WithRetry(p, cfg.Retry, log), nil
}

func withProviderName(p Provider, name string) Provider {
	if lp, ok := p.(*LoggingProvider); ok {
		lp.provider = name
	}
	return p
}
