package advice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when the config names none.
const DefaultModel = "gpt-4o-mini"

// DefaultTimeout bounds a single advice call.
const DefaultTimeout = 30 * time.Second

const systemPrompt = `You are a knowledge-graph analyst. You receive a textual rendering of a hierarchical knowledge graph: one line per node ("id: L<level> node", optionally followed by "contains: ..."), one line per edge ("source --[label]--> target").

Identify structural gaps and propose bridging edges between EXISTING node ids only. Respond with JSON matching:
{"bridges": [{"source": "...", "target": "...", "label": "...", "rationale": "..."}], "research_questions": ["..."]}

Propose at most 5 bridges. Never invent node ids.`

// OpenAIAdvisor asks an OpenAI-compatible chat model for bridging advice.
type OpenAIAdvisor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// OpenAIConfig configures the advisor.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewOpenAIAdvisor creates an advisor for any OpenAI-compatible endpoint.
func NewOpenAIAdvisor(cfg OpenAIConfig) *OpenAIAdvisor {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIAdvisor{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// SuggestBridges implements Advisor.
func (a *OpenAIAdvisor) SuggestBridges(ctx context.Context, rendered string) (*Advice, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rendered},
		},
		Temperature: 0.1,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("gap advice request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("gap advice returned no choices")
	}

	return parseAdvice(resp.Choices[0].Message.Content)
}

// parseAdvice decodes the model's answer, repairing malformed JSON first.
// Models wrap JSON in prose and code fences often enough that repairing is
// the normal path, not the exception.
func parseAdvice(content string) (*Advice, error) {
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		repaired = content
	}

	var advice Advice
	if err := json.Unmarshal([]byte(repaired), &advice); err != nil {
		return nil, fmt.Errorf("failed to decode gap advice: %w", err)
	}
	return &advice, nil
}
