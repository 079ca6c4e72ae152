package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"taxthink-server/internal/config"
	"taxthink-server/internal/domain/advisor"
	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/logger"
	"taxthink-server/internal/infrastructure/memstore"
)

type stubCompletionClient struct {
	reply string
	err   error
}

func (s *stubCompletionClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.reply}},
		},
	}, nil
}

func newTestServer(t *testing.T, client advisor.CompletionClient) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName:       "taxthink-api",
		Environment:       "test",
		HTTPPort:          0,
		ShutdownTimeout:   time.Second,
		GenerationTimeout: 5 * time.Second,
	}

	store := memstore.New()
	sessions := taxsession.NewService(store)
	advisorService := advisor.NewService(client, "gpt-4o")

	return New(cfg, logger.GetLogger(), sessions, advisorService)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestSessionLifecycle(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{
		reply: `{"content":"You can usually deduct business expenses.","thinkingMode":"Business Tax Optimization","categories":["deductions"],"actionItems":["List your expenses"],"keyInsights":["Deductions reduce taxable income"],"nextQuestions":["Are you self-employed?"]}`,
	})
	engine := server.Engine()

	// Create a session and receive its welcome message.
	created := doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{
		"title":        "T",
		"jurisdiction": "in",
		"currency":     "inr",
	})
	if created.Code != http.StatusOK {
		t.Fatalf("create session status = %d, body %s", created.Code, created.Body)
	}

	var createResp struct {
		Session        taxsession.Session      `json:"session"`
		WelcomeMessage advisor.StructuredReply `json:"welcomeMessage"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if createResp.Session.ID != 1 {
		t.Errorf("session id = %d, want 1", createResp.Session.ID)
	}
	if createResp.Session.Status != taxsession.SessionStatusActive {
		t.Errorf("session status = %q, want active", createResp.Session.Status)
	}
	if !strings.Contains(createResp.WelcomeMessage.Content, "**India**") || !strings.Contains(createResp.WelcomeMessage.Content, "**INR**") {
		t.Errorf("welcome content missing jurisdiction literals: %q", createResp.WelcomeMessage.Content)
	}
	if createResp.WelcomeMessage.ThinkingMode != "Welcome & Setup" {
		t.Errorf("welcome thinkingMode = %q, want Welcome & Setup", createResp.WelcomeMessage.ThinkingMode)
	}
	if len(createResp.WelcomeMessage.Categories) != 1 || createResp.WelcomeMessage.Categories[0] != "setup" {
		t.Errorf("welcome categories = %v, want [setup]", createResp.WelcomeMessage.Categories)
	}
	if len(createResp.WelcomeMessage.NextQuestions) != 1 {
		t.Errorf("welcome nextQuestions = %v, want one follow-up", createResp.WelcomeMessage.NextQuestions)
	}

	// The welcome envelope carries the structured reply, not a message record.
	var createEnvelope struct {
		WelcomeMessage map[string]json.RawMessage `json:"welcomeMessage"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &createEnvelope); err != nil {
		t.Fatalf("failed to decode create envelope: %v", err)
	}
	for _, key := range []string{"content", "thinkingMode", "categories", "actionItems", "keyInsights", "nextQuestions"} {
		if _, ok := createEnvelope.WelcomeMessage[key]; !ok {
			t.Errorf("welcomeMessage missing key %q", key)
		}
	}
	if _, ok := createEnvelope.WelcomeMessage["id"]; ok {
		t.Errorf("welcomeMessage carries a message record, got keys %v", createEnvelope.WelcomeMessage)
	}
	createdAt := createResp.Session.UpdatedAt

	// The welcome is still stored as the session's first assistant message,
	// with metadata that omits the follow-up questions.
	listed := doJSON(t, engine, http.MethodGet, "/api/sessions/1/messages", nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("list messages status = %d", listed.Code)
	}
	var messages []taxsession.Message
	if err := json.Unmarshal(listed.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != taxsession.MessageRoleAssistant {
		t.Fatalf("messages = %+v, want one assistant message", messages)
	}
	if messages[0].Metadata == nil || len(messages[0].Metadata.NextQuestions) != 0 {
		t.Errorf("stored welcome metadata = %+v, want next questions omitted", messages[0].Metadata)
	}

	time.Sleep(time.Millisecond)

	// Send a user message and receive the structured assistant reply.
	sent := doJSON(t, engine, http.MethodPost, "/api/sessions/1/messages", map[string]string{
		"content": "What can I deduct?",
	})
	if sent.Code != http.StatusOK {
		t.Fatalf("send message status = %d, body %s", sent.Code, sent.Body)
	}

	var sendResp struct {
		UserMessage      taxsession.Message      `json:"userMessage"`
		AssistantMessage taxsession.Message      `json:"assistantMessage"`
		AIResponse       advisor.StructuredReply `json:"aiResponse"`
	}
	if err := json.Unmarshal(sent.Body.Bytes(), &sendResp); err != nil {
		t.Fatalf("failed to decode send response: %v", err)
	}
	if sendResp.UserMessage.Role != taxsession.MessageRoleUser || sendResp.UserMessage.Content != "What can I deduct?" {
		t.Errorf("userMessage = %+v", sendResp.UserMessage)
	}
	if sendResp.AssistantMessage.Role != taxsession.MessageRoleAssistant {
		t.Errorf("assistantMessage role = %q, want assistant", sendResp.AssistantMessage.Role)
	}
	if sendResp.AssistantMessage.Metadata == nil || len(sendResp.AssistantMessage.Metadata.NextQuestions) != 1 {
		t.Errorf("assistant metadata = %+v, want stored next questions", sendResp.AssistantMessage.Metadata)
	}
	if sendResp.AIResponse.ThinkingMode != "Business Tax Optimization" {
		t.Errorf("aiResponse.thinkingMode = %q", sendResp.AIResponse.ThinkingMode)
	}

	// The exchange appended two messages and touched the session.
	listed = doJSON(t, engine, http.MethodGet, "/api/sessions/1/messages", nil)
	if err := json.Unmarshal(listed.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}

	got := doJSON(t, engine, http.MethodGet, "/api/sessions/1", nil)
	var session taxsession.Session
	if err := json.Unmarshal(got.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if !session.UpdatedAt.After(createdAt) {
		t.Errorf("updatedAt not advanced: %v -> %v", createdAt, session.UpdatedAt)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "missing title", body: map[string]string{"jurisdiction": "us", "currency": "usd"}},
		{name: "bad jurisdiction", body: map[string]string{"title": "T", "jurisdiction": "uk", "currency": "usd"}},
		{name: "bad currency", body: map[string]string{"title": "T", "jurisdiction": "us", "currency": "eur"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, engine, http.MethodPost, "/api/sessions", tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.Code)
			}
		})
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	resp := doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{"title": "T"})
	if resp.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", resp.Code, resp.Body)
	}

	var createResp struct {
		Session        taxsession.Session      `json:"session"`
		WelcomeMessage advisor.StructuredReply `json:"welcomeMessage"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if createResp.Session.Jurisdiction != taxsession.JurisdictionUS {
		t.Errorf("jurisdiction = %q, want us", createResp.Session.Jurisdiction)
	}
	if createResp.Session.Currency != taxsession.CurrencyUSD {
		t.Errorf("currency = %q, want usd", createResp.Session.Currency)
	}
	if !strings.Contains(createResp.WelcomeMessage.Content, "**United States**") {
		t.Errorf("welcome content = %q, want the default jurisdiction", createResp.WelcomeMessage.Content)
	}
}

func TestSessionNotFound(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	if resp := doJSON(t, engine, http.MethodGet, "/api/sessions/99", nil); resp.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want 404", resp.Code)
	}
	if resp := doJSON(t, engine, http.MethodPatch, "/api/sessions/99", map[string]string{"title": "X"}); resp.Code != http.StatusNotFound {
		t.Errorf("patch status = %d, want 404", resp.Code)
	}
	if resp := doJSON(t, engine, http.MethodPost, "/api/sessions/99/messages", map[string]string{"content": "hi"}); resp.Code != http.StatusNotFound {
		t.Errorf("send message status = %d, want 404", resp.Code)
	}
}

func TestUpdateSession(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{
		"title": "T", "jurisdiction": "us", "currency": "usd",
	})

	resp := doJSON(t, engine, http.MethodPatch, "/api/sessions/1", map[string]string{
		"title":  "Renamed",
		"status": "completed",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", resp.Code, resp.Body)
	}

	var session taxsession.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if session.Title != "Renamed" || session.Status != taxsession.SessionStatusCompleted {
		t.Errorf("session = %+v", session)
	}
	if session.Jurisdiction != taxsession.JurisdictionUS {
		t.Errorf("jurisdiction changed unexpectedly: %q", session.Jurisdiction)
	}

	if resp := doJSON(t, engine, http.MethodPatch, "/api/sessions/1", map[string]string{"status": "archived"}); resp.Code != http.StatusBadRequest {
		t.Errorf("invalid status code = %d, want 400", resp.Code)
	}
}

func TestListSessionsOrder(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	for _, title := range []string{"A", "B"} {
		doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{
			"title": title, "jurisdiction": "us", "currency": "usd",
		})
		time.Sleep(time.Millisecond)
	}

	// Touch the first session so it moves to the front.
	doJSON(t, engine, http.MethodPatch, "/api/sessions/1", map[string]string{"title": "A2"})

	resp := doJSON(t, engine, http.MethodGet, "/api/sessions", nil)
	var sessions []taxsession.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("failed to decode sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	if sessions[0].ID != 1 {
		t.Errorf("sessions[0].ID = %d, want 1 (most recently updated)", sessions[0].ID)
	}
}

func TestSessionData(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{
		"title": "T", "jurisdiction": "us", "currency": "usd",
	})

	first := doJSON(t, engine, http.MethodPost, "/api/sessions/1/data", map[string]any{
		"category":  "income",
		"dataKey":   "salary",
		"dataValue": map[string]int{"amount": 90000},
	})
	if first.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", first.Code, first.Body)
	}

	// Same triple again replaces the value in place.
	second := doJSON(t, engine, http.MethodPost, "/api/sessions/1/data", map[string]any{
		"category":  "income",
		"dataKey":   "salary",
		"dataValue": map[string]int{"amount": 95000},
	})
	var firstDatum, secondDatum taxsession.SessionDatum
	if err := json.Unmarshal(first.Body.Bytes(), &firstDatum); err != nil {
		t.Fatalf("failed to decode datum: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondDatum); err != nil {
		t.Fatalf("failed to decode datum: %v", err)
	}
	if firstDatum.ID != secondDatum.ID {
		t.Errorf("upsert changed id: %d -> %d", firstDatum.ID, secondDatum.ID)
	}

	// The wire shape exposes updatedAt only.
	var datumFields map[string]json.RawMessage
	if err := json.Unmarshal(first.Body.Bytes(), &datumFields); err != nil {
		t.Fatalf("failed to decode datum fields: %v", err)
	}
	if _, ok := datumFields["createdAt"]; ok {
		t.Errorf("datum exposes createdAt, got keys %v", datumFields)
	}
	if _, ok := datumFields["updatedAt"]; !ok {
		t.Errorf("datum missing updatedAt, got keys %v", datumFields)
	}

	doJSON(t, engine, http.MethodPost, "/api/sessions/1/data", map[string]any{
		"category":  "deductions",
		"dataKey":   "home_office",
		"dataValue": map[string]bool{"eligible": true},
	})

	all := doJSON(t, engine, http.MethodGet, "/api/sessions/1/data", nil)
	var data []taxsession.SessionDatum
	if err := json.Unmarshal(all.Body.Bytes(), &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(data))
	}

	filtered := doJSON(t, engine, http.MethodGet, "/api/sessions/1/data/income", nil)
	if err := json.Unmarshal(filtered.Body.Bytes(), &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if len(data) != 1 || data[0].Category != "income" {
		t.Errorf("filtered data = %+v, want one income datum", data)
	}
	if string(data[0].DataValue) != `{"amount":95000}` {
		t.Errorf("dataValue = %s, want the replaced value", data[0].DataValue)
	}

	if resp := doJSON(t, engine, http.MethodPost, "/api/sessions/1/data", map[string]any{"category": "income"}); resp.Code != http.StatusBadRequest {
		t.Errorf("invalid payload status = %d, want 400", resp.Code)
	}
}

func TestSendMessageGenerationFailure(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "not json at all"})
	engine := server.Engine()

	doJSON(t, engine, http.MethodPost, "/api/sessions", map[string]string{
		"title": "T", "jurisdiction": "us", "currency": "usd",
	})

	resp := doJSON(t, engine, http.MethodPost, "/api/sessions/1/messages", map[string]string{"content": "hi"})
	if resp.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.Code)
	}

	// Only the user turn was persisted before the failure.
	listed := doJSON(t, engine, http.MethodGet, "/api/sessions/1/messages", nil)
	var messages []taxsession.Message
	if err := json.Unmarshal(listed.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode messages: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("len(messages) = %d, want welcome plus user turn", len(messages))
	}
}

func TestCoreRoutes(t *testing.T) {
	server := newTestServer(t, &stubCompletionClient{reply: "{}"})
	engine := server.Engine()

	for _, path := range []string{"/", "/healthz", "/readyz", "/metrics"} {
		resp := doJSON(t, engine, http.MethodGet, path, nil)
		if resp.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.Code)
		}
	}
}
