package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/utils/platformerrors"
)

const (
	// maxHistoryTurns caps how many prior turns are replayed to the model.
	maxHistoryTurns = 10

	defaultTemperature   = 0.7
	defaultMaxTokens     = 2000
	fallbackContent      = "I apologize, but I encountered an error processing your request. Please try again."
	fallbackThinkingMode = "General Tax Analysis"
)

// CompletionClient is the outbound chat-completion dependency.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

// Turn is one prior exchange replayed as model context.
type Turn struct {
	Role    taxsession.MessageRole
	Content string
}

// StructuredReply is the parsed constrained-JSON reply from the model.
type StructuredReply struct {
	Content       string   `json:"content"`
	ThinkingMode  string   `json:"thinkingMode"`
	Categories    []string `json:"categories"`
	ActionItems   []string `json:"actionItems"`
	KeyInsights   []string `json:"keyInsights"`
	NextQuestions []string `json:"nextQuestions"`
}

// Service generates jurisdiction-aware structured tax guidance.
type Service struct {
	client CompletionClient
	model  string
}

// NewService creates a new advisor service. model is the chat model id sent
// on every completion request.
func NewService(client CompletionClient, model string) *Service {
	return &Service{client: client, model: model}
}

// GenerateResponse sends the conversation to the model and parses its
// constrained-JSON reply. Only the most recent turns of history are
// replayed. A reply that is not valid JSON is an external failure; a valid
// reply with missing fields is filled with neutral defaults.
func (s *Service) GenerateResponse(
	ctx context.Context,
	jurisdiction taxsession.Jurisdiction,
	currency taxsession.Currency,
	userMessage string,
	history []Turn,
) (*StructuredReply, error) {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: buildSystemPrompt(jurisdiction, currency),
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	response, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate response")
	}
	if len(response.Choices) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "completion returned no choices", nil, "e8a4f2c6-1b3d-4f5a-9c7e-2d4b6a8c0e1f")
	}

	return parseReply(ctx, response.Choices[0].Message.Content)
}

// parseReply decodes the model's JSON payload. An empty payload decodes as
// an empty object so every field falls back to its default.
func parseReply(ctx context.Context, raw string) (*StructuredReply, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	var reply StructuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "model reply is not valid JSON", err, "f1b5d3a7-4c6e-4a8b-0d2f-3e5c7a9b1d4e")
	}

	if reply.Content == "" {
		reply.Content = fallbackContent
	}
	if reply.ThinkingMode == "" {
		reply.ThinkingMode = fallbackThinkingMode
	}
	if reply.Categories == nil {
		reply.Categories = []string{}
	}
	if reply.ActionItems == nil {
		reply.ActionItems = []string{}
	}
	if reply.KeyInsights == nil {
		reply.KeyInsights = []string{}
	}
	if reply.NextQuestions == nil {
		reply.NextQuestions = []string{}
	}
	return &reply, nil
}

// WelcomeMessage builds the canned greeting for a newly created session.
// It never calls the model.
func (s *Service) WelcomeMessage(jurisdiction taxsession.Jurisdiction, currency taxsession.Currency) *StructuredReply {
	profile := welcomeProfileFor(jurisdiction)

	content := fmt.Sprintf(`Welcome! I'm your AI thinking companion for tax-related matters. I'm currently configured for **%s** tax jurisdiction with **%s** currency.

I can help you think through various tax scenarios including:
- Personal tax planning and optimization
- Business expense deductions and structuring
- Compliance requirements and deadlines
- %s

What tax situation would you like to think through today? I'll ask contextual questions to help structure your thinking process.`,
		profile.Jurisdiction,
		strings.ToUpper(string(currency)),
		profile.Examples,
	)

	return &StructuredReply{
		Content:       content,
		ThinkingMode:  "Welcome & Setup",
		Categories:    []string{"setup"},
		ActionItems:   []string{"Describe your tax situation or ask a specific question"},
		KeyInsights:   []string{fmt.Sprintf("Configured for %s tax context", profile.Jurisdiction)},
		NextQuestions: []string{"What specific tax area would you like to explore?"},
	}
}
