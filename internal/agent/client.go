package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Provider names the wire protocol spoken by a Client.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

const jsonOnlyDirective = "IMPORTANT: You MUST respond with valid JSON only. Your entire response must be a single JSON value with no additional text, markdown, or explanations."

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	provider   Provider
	maxTokens  int
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithBackoff sets the base delay; attempt n waits n times this long.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithAPIConfig selects the provider protocol, endpoint and model.
func WithAPIConfig(provider Provider, baseURL, model string) Option {
	return func(c *Client) {
		c.provider = provider
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
		if model != "" {
			c.model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// DefaultBaseURL returns the public endpoint for a provider.
func DefaultBaseURL(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderOllama:
		return "http://localhost:11434"
	default:
		return "https://api.anthropic.com/v1"
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:   apiKey,
		provider: ProviderAnthropic,
		model:    "claude-3-5-sonnet-20241022",
		httpClient: &http.Client{
			// chapter prose can take minutes
			Timeout:   5 * time.Minute,
			Transport: transport,
		},
		maxTokens:  4096,
		maxRetries: 3,
		backoff:    time.Second,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL(c.provider)
	}

	c.logger.Debug("AI client initialized",
		"provider", c.provider,
		"base_url", c.baseURL,
		"model", c.model,
		"max_retries", c.maxRetries,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

// CompleteWithSystem makes a free-text request with separate system and user prompts.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, true, nil)
}

// CompleteJSONWithSystem makes a JSON request. OpenAI receives the schema as a json_schema
// response format, Anthropic gets it in the system prompt and Ollama runs in json mode.
func (c *Client) CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, false, schema)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, text bool, schema *Schema) (string, error) {
	op := "complete"
	if !text {
		op = "complete json"
	}
	requestID := fmt.Sprintf("api_%d", time.Now().UnixNano())
	startTime := time.Now()

	c.logger.Debug("waiting for rate limit", "request_id", requestID)
	if err := c.limiter.Wait(ctx); err != nil {
		return "", newError(KindTransport, op, fmt.Errorf("rate limit wait failed: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			c.logger.Debug("retry backoff",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds())

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.logger.Warn("request cancelled during backoff",
					"request_id", requestID,
					"attempt", attempt)
				return "", newError(KindTransport, op, ctx.Err())
			}
		}

		attemptStart := time.Now()
		c.logger.Debug("attempting AI generation request",
			"request_id", requestID,
			"attempt", attempt,
			"system_prompt_length", len(systemPrompt),
			"user_prompt_length", len(userPrompt),
			"force_json", !text,
			"provider", c.provider,
			"model", c.model)

		response, err := c.doRequest(ctx, requestID, systemPrompt, userPrompt, text, schema)
		if err == nil {
			if strings.TrimSpace(response) == "" {
				return "", newError(KindEmpty, op, errors.New("provider returned no content"))
			}
			c.logger.Info("API request successful",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"response_length", len(response),
				"total_duration_ms", time.Since(startTime).Milliseconds())
			return response, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			c.logger.Error("API request failed with non-retryable error",
				"request_id", requestID,
				"attempt", attempt,
				"error", err)
			return "", newError(KindTransport, op, err)
		}

		c.logger.Warn("API request failed, will retry",
			"request_id", requestID,
			"attempt", attempt,
			"duration_ms", time.Since(attemptStart).Milliseconds(),
			"error", err)
	}

	c.logger.Error("API request failed after max retries",
		"request_id", requestID,
		"max_retries", c.maxRetries,
		"total_duration_ms", time.Since(startTime).Milliseconds(),
		"last_error", lastErr)

	return "", newError(KindTransport, op, fmt.Errorf("max retries exceeded: %w", lastErr))
}

func (c *Client) doRequest(ctx context.Context, requestID, systemPrompt, userPrompt string, text bool, schema *Schema) (string, error) {
	switch c.provider {
	case ProviderOpenAI:
		return c.doOpenAIRequest(ctx, requestID, systemPrompt, userPrompt, text, schema)
	case ProviderOllama:
		return c.doOllamaRequest(ctx, requestID, systemPrompt, userPrompt, text, schema)
	default:
		return c.doAnthropicRequest(ctx, requestID, systemPrompt, userPrompt, text, schema)
	}
}

func (c *Client) doOpenAIRequest(ctx context.Context, requestID, systemPrompt, userPrompt string, text bool, schema *Schema) (string, error) {
	if !text {
		systemPrompt = joinSystem(systemPrompt, jsonOnlyDirective)
	}
	messages := []map[string]string{
		{"role": "system", "content": systemPrompt},
		{"role": "user", "content": userPrompt},
	}

	requestBody := map[string]any{
		"model":      c.model,
		"messages":   messages,
		"max_tokens": c.maxTokens,
	}
	switch {
	case !text && schema != nil:
		requestBody["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schema.Name,
				"schema": schema.Definition,
			},
		}
	case !text:
		requestBody["response_format"] = map[string]string{"type": "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	respBody, err := c.post(ctx, requestID, "/chat/completions", requestBody, headers)
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", nil
	}

	c.logger.Info("OpenAI request completed",
		"request_id", requestID,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
		"total_tokens", response.Usage.TotalTokens)
	return response.Choices[0].Message.Content, nil
}

func (c *Client) doAnthropicRequest(ctx context.Context, requestID, systemPrompt, userPrompt string, text bool, schema *Schema) (string, error) {
	if !text {
		systemPrompt = joinSystem(systemPrompt, jsonOnlyDirective)
		if schema != nil {
			systemPrompt += "\n\nThe JSON must match this schema:\n" + string(schema.Definition)
		}
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
		"max_tokens": c.maxTokens,
	}
	if systemPrompt != "" {
		requestBody["system"] = systemPrompt
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}
	respBody, err := c.post(ctx, requestID, "/messages", requestBody, headers)
	if err != nil {
		return "", err
	}

	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", nil
	}

	c.logger.Info("Anthropic request completed",
		"request_id", requestID,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"total_tokens", response.Usage.InputTokens+response.Usage.OutputTokens)
	return response.Content[0].Text, nil
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

func (c *Client) doOllamaRequest(ctx context.Context, requestID, systemPrompt, userPrompt string, text bool, schema *Schema) (string, error) {
	body := ollamaRequest{
		Model:   c.model,
		System:  systemPrompt,
		Prompt:  userPrompt,
		Options: ollamaOptions{NumPredict: c.maxTokens},
	}
	if !text {
		body.Format = "json"
		body.System = joinSystem(systemPrompt, jsonOnlyDirective)
		if schema != nil {
			body.System += "\n\nThe JSON must match this schema:\n" + string(schema.Definition)
		}
	}

	respBody, err := c.post(ctx, requestID, "/api/generate", body, nil)
	if err != nil {
		return "", err
	}

	var response struct {
		Model    string `json:"model"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return response.Response, nil
}

// post sends a JSON body and returns the raw response body of a 200 reply.
func (c *Client) post(ctx context.Context, requestID, endpoint string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpStart := time.Now()
	c.logger.Debug("sending HTTP request",
		"request_id", requestID,
		"provider", c.provider,
		"endpoint", endpoint,
		"body_size_bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("HTTP response received",
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"body_size", len(respBody),
		"duration_ms", time.Since(httpStart).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// isRetryable treats 429 and 5xx as transient; other statuses and a dead context are final.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

func joinSystem(system, directive string) string {
	if strings.TrimSpace(system) == "" {
		return directive
	}
	return system + "\n\n" + directive
}
