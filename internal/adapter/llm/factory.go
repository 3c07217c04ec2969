package llm

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/asksql/internal/config"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

// NewFromConfig builds the LanguageModel selected by LLM_PROVIDER. Missing
// credentials surface as config.ErrMissingAPIKey.
func NewFromConfig(ctx context.Context, cfg *config.Config) (port.LanguageModel, error) {
	if err := cfg.RequireLLMCredentials(); err != nil {
		return nil, err
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderBedrock:
		return NewBedrockClient(ctx, cfg.AWSRegion, cfg.BedrockModelID)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
