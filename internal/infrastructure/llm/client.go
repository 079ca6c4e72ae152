package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"taxthink-server/internal/infrastructure/metrics"
	"taxthink-server/internal/utils/platformerrors"
)

// Client talks to an OpenAI-compatible chat-completion endpoint. It
// implements advisor.CompletionClient.
type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewClient wraps a resty client for the given endpoint. baseURL is the API
// root (e.g. https://api.openai.com/v1) without the completions path.
func NewClient(client *resty.Client, baseURL, apiKey string) *Client {
	return &Client{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		apiKey:  apiKey,
	}
}

// CreateChatCompletion posts the request and decodes the provider response.
// Non-2xx responses are surfaced as external errors with the body text.
func (c *Client) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "completion request failed", err, "9d2f4b6a-8c0e-4d1f-a3b5-7c9e1f2a4b6d")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "completion request failed")
	}
	metrics.RecordGenerationTokens(respBody.Usage.PromptTokens, respBody.Usage.CompletionTokens)
	return &respBody, nil
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

func (c *Client) endpoint(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "4a6c8e0f-2b4d-4f6a-8c0e-1d3f5a7b9c1e")
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "6b8d0f2a-4c6e-4a8b-0d2f-3e5a7c9b1d3f")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil, "8c0e2a4b-6d8f-4b0c-2e4a-5f7b9d1c3e5a")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", message, trimmed), nil, "0e2a4c6d-8f0b-4c2e-4a6b-7d9f1b3d5e7a")
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	return strings.TrimRight(trimmed, "/")
}
