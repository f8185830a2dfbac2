package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/metrics"
)

// Reasoner calls the external reasoning service behind the query classifier
// over an OpenAI-compatible chat API, expecting a JSON object reply.
//
// The reply is untrusted text: parsing against the strict result shape
// happens in the classify usecase, not here.
type Reasoner struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	logger      *zap.Logger
}

// ReasonerConfig holds the reasoning service settings.
type ReasonerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int // bounded to one retry
	Logger      *zap.Logger
}

// NewReasoner creates an OpenAI-compatible reasoning client.
func NewReasoner(cfg *ReasonerConfig) *Reasoner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retries := cfg.MaxRetries
	if retries < 0 || retries > 1 {
		retries = 1
	}

	return &Reasoner{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		maxRetries:  retries,
		logger:      cfg.Logger,
	}
}

// Complete sends the prompts and returns the raw reply content plus usage.
// The whole call, retry included, runs under one bounded timeout. A
// transient provider failure (429, 5xx, connection error) is retried at
// most once; a deadline expiry is returned as ErrClassificationTimeout and
// never retried. Usage is populated even on failure so the search log can
// account for the attempt.
func (r *Reasoner) Complete(ctx context.Context, system, user string) (string, domain.Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	content, usage, err := r.complete(ctx, system, user)
	if err != nil && r.maxRetries > 0 && isTransient(err) && ctx.Err() == nil {
		r.logger.Warn("reasoning service transient failure, retrying once", zap.Error(err))
		content, usage, err = r.complete(ctx, system, user)
	}

	usage.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(r.model, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", usage, fmt.Errorf("%w: %w", domain.ErrClassificationTimeout, err)
		}
		return "", usage, err
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(r.model, "success").Inc()
	metrics.ClassifierRequestDuration.WithLabelValues(r.model).Observe(time.Since(start).Seconds())
	if usage.TotalTokens > 0 {
		metrics.ClassifierTokensTotal.WithLabelValues(r.model, "prompt").Add(float64(usage.PromptTokens))
		metrics.ClassifierTokensTotal.WithLabelValues(r.model, "total").Add(float64(usage.TotalTokens))
	}

	return content, usage, nil
}

func (r *Reasoner) complete(ctx context.Context, system, user string) (string, domain.Usage, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.Usage{}, fmt.Errorf("chat completion: %w", err)
	}

	usage := domain.Usage{
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("empty completion response")
	}

	return resp.Choices[0].Message.Content, usage, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (r *Reasoner) HealthCheck(ctx context.Context) error {
	if _, err := r.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// isTransient reports whether the provider failure is worth one retry:
// rate limiting, server-side errors, or a broken connection.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 ||
			reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
