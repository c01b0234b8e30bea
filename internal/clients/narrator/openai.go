package narrator

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// Config for the OpenAI-compatible client
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// RequestsPerSecond paces calls to the provider; zero disables pacing
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Validate ensures the client can be built
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateRequired("BaseURL", c.BaseURL, vb)
	errors.ValidateRequired("Model", c.Model, vb)
	errors.ValidatePositive("MaxTokens", int64(c.MaxTokens), vb)
	if c.Timeout <= 0 {
		vb.Field("Timeout", "must be positive")
	}
	if c.RequestsPerSecond < 0 {
		vb.Field("RequestsPerSecond", "must not be negative")
	}

	return vb.Build()
}

type openAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewOpenAI creates a narrator backed by a chat completions endpoint
func NewOpenAI(cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}

	return &openAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     limiter,
	}, nil
}

// Ensure openAIClient implements Client
var _ Client = (*openAIClient)(nil)

func (c *openAIClient) Narrate(ctx context.Context, input *NarrateInput) (*NarrateOutput, error) {
	if input == nil || len(input.Messages) == 0 {
		return nil, errors.InvalidArgument("at least one message is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "narrator rate limit wait aborted")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := c.maxTokens
	if input.MaxTokens > 0 {
		maxTokens = input.MaxTokens
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(input.Messages)+1)
	if input.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: input.System})
	}
	for _, m := range input.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Unavailable("narrator returned no choices")
	}

	slog.DebugContext(ctx, "narrator replied",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", string(resp.Choices[0].FinishReason),
		"elapsed", time.Since(start))

	return &NarrateOutput{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// classify maps provider failures onto the error taxonomy. Throttling, server
// errors and transport failures are Unavailable; other 4xx replies are
// configuration problems and are not worth retrying.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.WrapWithCode(err, errors.CodeDeadlineExceeded, "narrator timed out")
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "narrator unavailable").
			WithMeta("http_status", status)
	}
	return errors.WrapWithCode(err, errors.CodeInternal, "narrator rejected the request").
		WithMeta("http_status", status)
}
