package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel         = "gpt-4-turbo-preview"
	defaultTemperature   = 0.7
	defaultOpenAITimeout = 59 * time.Second
	defaultRetryInterval = 500 * time.Millisecond
)

// OpenAIOptions configures an [OpenAIService].
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration // per attempt
	MaxRetries int           // retries after the first attempt
	HTTPClient *http.Client
	Logger     *log.Logger

	// RetryInterval is the first backoff delay.
	RetryInterval time.Duration
}

// OpenAIService implements [Recommender] with the chat completions API.
type OpenAIService struct {
	client        *openai.Client
	model         string
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
	logger        *log.Logger
}

// NewOpenAIService creates a completion client.
func NewOpenAIService(opts OpenAIOptions) (*OpenAIService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: missing openai api_key", shared.ErrMissingCredentials)
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	svc := &OpenAIService{
		client:        openai.NewClientWithConfig(cfg),
		model:         withDefault(opts.Model, defaultModel),
		timeout:       opts.Timeout,
		maxRetries:    max(opts.MaxRetries, 0),
		retryInterval: opts.RetryInterval,
		logger:        opts.Logger,
	}
	if svc.timeout <= 0 {
		svc.timeout = defaultOpenAITimeout
	}
	if svc.retryInterval <= 0 {
		svc.retryInterval = defaultRetryInterval
	}
	if svc.logger == nil {
		svc.logger = log.New(io.Discard)
	}
	return svc, nil
}

func (s *OpenAIService) Name() string {
	return "OpenAI"
}

// Recommend asks for req.NumberOfTracks suggestions and a playlist name.
//
// The returned name carries [models.BrandSuffix].
func (s *OpenAIService) Recommend(ctx context.Context, req models.GenerationRequest) (*models.Recommendations, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	userPrompt, err := BuildUserPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	request := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: defaultTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	attempt := 0
	content, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		content, err := s.complete(ctx, request)
		if err == nil {
			return content, nil
		}
		if !isTransient(ctx, err) {
			return "", backoff.Permanent(err)
		}
		s.logger.Warn("completion attempt failed", "attempt", attempt, "error", err)
		return "", err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.maxRetries+1)))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidRecommendationFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: completion failed after %d attempt(s): %w", shared.ErrAPIRequest, attempt, err)
	}

	recs, err := ParseRecommendations(content)
	if err != nil {
		return nil, err
	}
	recs.PlaylistName += models.BrandSuffix

	s.logger.Debug("received recommendations", "count", len(recs.Suggestions), "requested", req.NumberOfTracks)
	return recs, nil
}

func (s *OpenAIService) complete(ctx context.Context, request openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", shared.ErrInvalidRecommendationFormat)
	}
	return resp.Choices[0].Message.Content, nil
}

// isTransient reports whether a failed attempt may be retried: network errors, 429 and 5xx.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, shared.ErrInvalidRecommendationFormat) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode)
	}

	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ParseRecommendations validates a completion payload.
//
// It requires a JSON object with a non-empty string playlistName and an array of
// {name, artist, reason} objects under recommendations. The array length is not checked.
func ParseRecommendations(content string) (*models.Recommendations, error) {
	var raw struct {
		PlaylistName    json.RawMessage `json:"playlistName"`
		Recommendations json.RawMessage `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidRecommendationFormat, err)
	}

	var name string
	if err := json.Unmarshal(raw.PlaylistName, &name); err != nil || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlistName must be a non-empty string", shared.ErrInvalidRecommendationFormat)
	}

	if !bytes.HasPrefix(bytes.TrimSpace(raw.Recommendations), []byte("[")) {
		return nil, fmt.Errorf("%w: recommendations must be an array", shared.ErrInvalidRecommendationFormat)
	}

	var suggestions []models.Suggestion
	if err := json.Unmarshal(raw.Recommendations, &suggestions); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidRecommendationFormat, err)
	}

	return &models.Recommendations{PlaylistName: name, Suggestions: suggestions}, nil
}
