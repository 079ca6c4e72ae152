package advisor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/utils/platformerrors"
)

type fakeCompletionClient struct {
	lastRequest openai.ChatCompletionRequest
	reply       string
	err         error
	noChoices   bool
}

func (f *fakeCompletionClient) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.lastRequest = request
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoices {
		return &openai.ChatCompletionResponse{}, nil
	}
	return &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestGenerateResponseParsesStructuredReply(t *testing.T) {
	client := &fakeCompletionClient{
		reply: `{
			"content": "Let's look at your home office deduction.",
			"thinkingMode": "Business Tax Optimization",
			"categories": ["deductions"],
			"actionItems": ["Measure your office space"],
			"keyInsights": ["Home office may be deductible"],
			"nextQuestions": ["Is the space used exclusively for work?"]
		}`,
	}
	service := NewService(client, "gpt-4o")

	reply, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionUS, taxsession.CurrencyUSD, "Can I deduct my home office?", nil)
	if err != nil {
		t.Fatalf("GenerateResponse returned error: %v", err)
	}

	if reply.Content != "Let's look at your home office deduction." {
		t.Errorf("unexpected content: %q", reply.Content)
	}
	if reply.ThinkingMode != "Business Tax Optimization" {
		t.Errorf("unexpected thinkingMode: %q", reply.ThinkingMode)
	}
	if len(reply.Categories) != 1 || reply.Categories[0] != "deductions" {
		t.Errorf("unexpected categories: %v", reply.Categories)
	}
}

func TestGenerateResponseRequestShape(t *testing.T) {
	client := &fakeCompletionClient{reply: `{"content":"ok"}`}
	service := NewService(client, "gpt-4o")

	_, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionIN, taxsession.CurrencyINR, "How does GST work?", []Turn{
		{Role: taxsession.MessageRoleUser, Content: "hello"},
		{Role: taxsession.MessageRoleAssistant, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("GenerateResponse returned error: %v", err)
	}

	request := client.lastRequest
	if request.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", request.Model)
	}
	if request.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", request.Temperature)
	}
	if request.MaxTokens != 2000 {
		t.Errorf("maxTokens = %d, want 2000", request.MaxTokens)
	}
	if request.ResponseFormat == nil || request.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("responseFormat = %+v, want json_object", request.ResponseFormat)
	}

	// system prompt, two history turns, then the new user message
	if len(request.Messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(request.Messages))
	}
	if request.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("messages[0].Role = %q, want system", request.Messages[0].Role)
	}
	if !strings.Contains(request.Messages[0].Content, "Indian tax system including Income Tax Act and GST") {
		t.Errorf("system prompt missing jurisdiction context: %q", request.Messages[0].Content)
	}
	if !strings.Contains(request.Messages[0].Content, "Use INR currency format") {
		t.Errorf("system prompt missing currency directive")
	}
	if request.Messages[3].Role != openai.ChatMessageRoleUser || request.Messages[3].Content != "How does GST work?" {
		t.Errorf("messages[3] = %+v, want trailing user message", request.Messages[3])
	}
}

func TestGenerateResponseTrimsHistory(t *testing.T) {
	client := &fakeCompletionClient{reply: `{"content":"ok"}`}
	service := NewService(client, "gpt-4o")

	history := make([]Turn, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, Turn{Role: taxsession.MessageRoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	_, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionUS, taxsession.CurrencyUSD, "latest", history)
	if err != nil {
		t.Fatalf("GenerateResponse returned error: %v", err)
	}

	// system + 10 most recent turns + new user message
	if len(client.lastRequest.Messages) != 12 {
		t.Fatalf("len(messages) = %d, want 12", len(client.lastRequest.Messages))
	}
	if client.lastRequest.Messages[1].Content != "turn 4" {
		t.Errorf("oldest replayed turn = %q, want turn 4", client.lastRequest.Messages[1].Content)
	}
}

func TestGenerateResponseDefaults(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty payload", reply: ""},
		{name: "empty object", reply: "{}"},
		{name: "partial object", reply: `{"categories":["income"]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeCompletionClient{reply: tc.reply}
			service := NewService(client, "gpt-4o")

			reply, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionUS, taxsession.CurrencyUSD, "hello", nil)
			if err != nil {
				t.Fatalf("GenerateResponse returned error: %v", err)
			}

			if tc.reply == `{"categories":["income"]}` {
				if len(reply.Categories) != 1 || reply.Categories[0] != "income" {
					t.Errorf("categories = %v, want [income]", reply.Categories)
				}
			} else if len(reply.Categories) != 0 || reply.Categories == nil {
				t.Errorf("categories = %v, want empty non-nil slice", reply.Categories)
			}
			if reply.Content != fallbackContent {
				t.Errorf("content = %q, want fallback", reply.Content)
			}
			if reply.ThinkingMode != fallbackThinkingMode {
				t.Errorf("thinkingMode = %q, want fallback", reply.ThinkingMode)
			}
			if reply.ActionItems == nil || reply.KeyInsights == nil || reply.NextQuestions == nil {
				t.Errorf("list fields must default to empty slices: %+v", reply)
			}
		})
	}
}

func TestGenerateResponseInvalidJSON(t *testing.T) {
	client := &fakeCompletionClient{reply: "Sorry, I cannot answer in JSON."}
	service := NewService(client, "gpt-4o")

	_, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionUS, taxsession.CurrencyUSD, "hello", nil)
	if err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
		t.Errorf("error type = %v, want external", err)
	}
}

func TestGenerateResponseNoChoices(t *testing.T) {
	client := &fakeCompletionClient{noChoices: true}
	service := NewService(client, "gpt-4o")

	_, err := service.GenerateResponse(context.Background(), taxsession.JurisdictionUS, taxsession.CurrencyUSD, "hello", nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
		t.Errorf("error type = %v, want external", err)
	}
}

func TestWelcomeMessage(t *testing.T) {
	tests := []struct {
		name         string
		jurisdiction taxsession.Jurisdiction
		currency     taxsession.Currency
		wantMention  string
		wantInsight  string
	}{
		{
			name:         "united states",
			jurisdiction: taxsession.JurisdictionUS,
			currency:     taxsession.CurrencyUSD,
			wantMention:  "**United States** tax jurisdiction with **USD** currency",
			wantInsight:  "Configured for United States tax context",
		},
		{
			name:         "india",
			jurisdiction: taxsession.JurisdictionIN,
			currency:     taxsession.CurrencyINR,
			wantMention:  "**India** tax jurisdiction with **INR** currency",
			wantInsight:  "Configured for India tax context",
		},
	}

	service := NewService(&fakeCompletionClient{}, "gpt-4o")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reply := service.WelcomeMessage(tc.jurisdiction, tc.currency)

			if !strings.Contains(reply.Content, tc.wantMention) {
				t.Errorf("welcome content missing %q", tc.wantMention)
			}
			if reply.ThinkingMode != "Welcome & Setup" {
				t.Errorf("thinkingMode = %q, want Welcome & Setup", reply.ThinkingMode)
			}
			if len(reply.Categories) != 1 || reply.Categories[0] != "setup" {
				t.Errorf("categories = %v, want [setup]", reply.Categories)
			}
			if len(reply.KeyInsights) != 1 || reply.KeyInsights[0] != tc.wantInsight {
				t.Errorf("keyInsights = %v, want [%s]", reply.KeyInsights, tc.wantInsight)
			}
			if len(reply.NextQuestions) != 1 || reply.NextQuestions[0] != "What specific tax area would you like to explore?" {
				t.Errorf("nextQuestions = %v", reply.NextQuestions)
			}
		})
	}
}
