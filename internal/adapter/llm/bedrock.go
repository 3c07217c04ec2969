package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/guillermoBallester/asksql/internal/core/port"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockAPI is the subset of the Bedrock runtime client used here.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// BedrockClient invokes Claude models hosted on Amazon Bedrock, retrying
// throttling and 5xx failures with jittered exponential backoff.
type BedrockClient struct {
	api          bedrockAPI
	modelID      string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func NewBedrockClient(ctx context.Context, region, modelID string) (*BedrockClient, error) {
	if modelID == "" {
		return nil, fmt.Errorf("Bedrock model ID is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newBedrockClient(bedrockruntime.NewFromConfig(cfg), modelID), nil
}

func newBedrockClient(api bedrockAPI, modelID string) *BedrockClient {
	return &BedrockClient{
		api:          api,
		modelID:      modelID,
		maxRetries:   3,
		initialDelay: 200 * time.Millisecond,
		maxDelay:     10 * time.Second,
	}
}

func (c *BedrockClient) Name() string { return "bedrock/" + c.modelID }

func (c *BedrockClient) Complete(ctx context.Context, p port.Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, err := c.invoke(ctx, p)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return "", err
		}
		if attempt == c.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff(attempt, c.initialDelay, c.maxDelay)):
		}
	}
	return "", fmt.Errorf("max retries %d exceeded: %w", c.maxRetries, lastErr)
}

func (c *BedrockClient) invoke(ctx context.Context, p port.Prompt) (string, error) {
	body, err := json.Marshal(claudeMessageRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        anthropicMaxTokens,
		Temperature:      0,
		System:           p.System,
		Messages:         []claudeMessage{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding bedrock request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("invoking bedrock model %s: %w", c.modelID, err)
	}

	var resp claudeMessageResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decoding bedrock response: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("bedrock: %w", ErrEmptyCompletion)
	}
	return b.String(), nil
}

func isRetryableError(err error) bool {
	var (
		throttled   *types.ThrottlingException
		unavailable *types.ServiceUnavailableException
		internal    *types.InternalServerException
		notReady    *types.ModelNotReadyException
	)
	if errors.As(err, &throttled) || errors.As(err, &unavailable) ||
		errors.As(err, &internal) || errors.As(err, &notReady) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "TooManyRequestsException") ||
		strings.Contains(msg, "Rate exceeded") ||
		strings.Contains(msg, "connection reset")
}

// backoff returns initial*2^attempt capped at ceiling, with ±20% jitter.
func backoff(attempt int, initial, ceiling time.Duration) time.Duration {
	d := float64(initial) * math.Pow(2, float64(attempt))
	if d > float64(ceiling) {
		d = float64(ceiling)
	}
	d += d * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(d)
}
