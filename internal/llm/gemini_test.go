package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeGemini serves a scripted sequence of generateContent responses and
// records every request body it receives.
type fakeGemini struct {
	t         *testing.T
	responses []fakeResponse
	requests  []geminiRequest
	server    *httptest.Server
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeGemini(t *testing.T, responses ...fakeResponse) *fakeGemini {
	f := &fakeGemini{t: t, responses: responses}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req geminiRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body is not a valid generateContent request: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.requests = append(f.requests, req)

		if len(f.responses) == 0 {
			t.Errorf("unexpected request %d, no scripted response left", len(f.requests))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		next := f.responses[0]
		f.responses = f.responses[1:]
		if next.status != 0 && next.status != http.StatusOK {
			w.WriteHeader(next.status)
			return
		}
		w.Write([]byte(next.body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGemini) chatService() *ChatService {
	return &ChatService{
		apiKey:   "test-key",
		model:    "gemini-2.0-flash",
		apiURL:   f.server.URL + "/v1beta/models/%s:generateContent",
		client:   &http.Client{Timeout: 5 * time.Second},
		registry: newTestRegistry(nil, nil, nil),
	}
}

func textResponse(text string) fakeResponse {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}}},
		},
	})
	return fakeResponse{body: string(body)}
}

func toolCallResponse(name string, args map[string]any) fakeResponse {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"role": "model", "parts": []map[string]any{
				{"functionCall": map[string]any{"name": name, "args": args}},
			}}},
		},
	})
	return fakeResponse{body: string(body)}
}

const fencedReply = "```json\n{\"message\": \"Sol Ring is a staple.\", \"cardsToDisplay\": [], \"suggestions\": [\"What decks want Sol Ring?\", \"Show me similar rocks\"]}\n```"

func TestRunChat_DirectAnswer(t *testing.T) {
	fake := newFakeGemini(t, textResponse(fencedReply))
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("Tell me about Sol Ring")})
	if err != nil {
		t.Fatalf("RunChat failed: %v", err)
	}

	if reply.Message != "Sol Ring is a staple." {
		t.Errorf("unexpected message: %q", reply.Message)
	}
	if len(reply.Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(reply.Suggestions))
	}
	if reply.CardsToDisplay == nil {
		t.Error("cardsToDisplay should never be nil")
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected 1 upstream request, got %d", len(fake.requests))
	}

	req := fake.requests[0]
	if req.SystemInstruction == nil || len(req.SystemInstruction.Parts) == 0 {
		t.Error("request should carry the system instruction")
	}
	if len(req.Tools) != 1 || len(req.Tools[0].FunctionDeclarations) != 3 {
		t.Errorf("request should declare all 3 tools, got %+v", req.Tools)
	}
	last := req.Contents[len(req.Contents)-1]
	if last.Role != "user" || last.Parts[0].Text != "Tell me about Sol Ring" {
		t.Errorf("last content should be the user turn, got %+v", last)
	}
}

func TestRunChat_SingleToolRound(t *testing.T) {
	fake := newFakeGemini(t,
		toolCallResponse("lookupKeyword", map[string]any{"keyword": "flying"}),
		textResponse(fencedReply),
	)
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("What is flying?")})
	if err != nil {
		t.Fatalf("RunChat failed: %v", err)
	}
	if reply.Message == "" {
		t.Error("expected a parsed reply after the tool round")
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 upstream requests, got %d", len(fake.requests))
	}

	// The second request must replay the model's tool call and append a
	// function turn carrying the result.
	second := fake.requests[1]
	n := len(second.Contents)
	modelTurn := second.Contents[n-2]
	funcTurn := second.Contents[n-1]
	if modelTurn.Role != "model" || modelTurn.Parts[0].FunctionCall == nil {
		t.Errorf("expected the model's tool-call turn to be echoed, got %+v", modelTurn)
	}
	if funcTurn.Role != "function" {
		t.Errorf("expected a function turn, got role %q", funcTurn.Role)
	}
	fr := funcTurn.Parts[0].FunctionResponse
	if fr == nil || fr.Name != "lookupKeyword" {
		t.Fatalf("function turn should carry the tool result, got %+v", funcTurn.Parts[0])
	}
	payload, ok := fr.Response.(map[string]any)
	if !ok || payload["content"] == nil {
		t.Errorf("function response should wrap the payload under content, got %+v", fr.Response)
	}
}

func TestRunChat_ToolFailureDoesNotAbortTheLoop(t *testing.T) {
	fake := newFakeGemini(t,
		toolCallResponse("unknownTool", map[string]any{}),
		textResponse(fencedReply),
	)
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hm")})
	if err != nil {
		t.Fatalf("an unknown tool must not abort the run: %v", err)
	}
	if reply.Message == "" {
		t.Error("expected a parsed reply")
	}

	// The error payload is fed back to the model as a normal tool result.
	second := fake.requests[1]
	fr := second.Contents[len(second.Contents)-1].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "unknownTool" {
		t.Fatalf("expected a function response for the unknown tool, got %+v", second.Contents)
	}
	payload, _ := fr.Response.(map[string]any)
	content, _ := payload["content"].(string)
	if !strings.Contains(content, "no executor found") {
		t.Errorf("payload should describe the missing executor, got %q", content)
	}
}

func TestRunChat_NineToolRoundsSucceed(t *testing.T) {
	responses := make([]fakeResponse, 0, 10)
	for i := 0; i < 9; i++ {
		responses = append(responses, toolCallResponse("lookupKeyword", map[string]any{"keyword": "flying"}))
	}
	responses = append(responses, textResponse(fencedReply))

	fake := newFakeGemini(t, responses...)
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("dig deep")})
	if err != nil {
		t.Fatalf("RunChat failed after 9 tool rounds: %v", err)
	}
	if reply.Message != "Sol Ring is a staple." {
		t.Errorf("unexpected message: %q", reply.Message)
	}
	if len(fake.requests) != 10 {
		t.Errorf("expected 10 upstream requests, got %d", len(fake.requests))
	}
}

func TestRunChat_RoundBudgetExceeded(t *testing.T) {
	responses := make([]fakeResponse, 0, maxToolRounds)
	for i := 0; i < maxToolRounds; i++ {
		responses = append(responses, toolCallResponse("lookupKeyword", map[string]any{"keyword": "flying"}))
	}

	fake := newFakeGemini(t, responses...)
	svc := fake.chatService()

	_, err := svc.RunChat(context.Background(), nil, []Part{TextPart("loop forever")})
	if !errors.Is(err, ErrToolRoundsExceeded) {
		t.Fatalf("expected ErrToolRoundsExceeded, got %v", err)
	}
	if len(fake.requests) != maxToolRounds {
		t.Errorf("budget failure must not send another request: got %d requests, want %d",
			len(fake.requests), maxToolRounds)
	}
}

func TestRunChat_RetriesOnceOnFailure(t *testing.T) {
	fake := newFakeGemini(t,
		fakeResponse{status: http.StatusInternalServerError},
		textResponse(fencedReply),
	)
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hello")})
	if err != nil {
		t.Fatalf("expected the retry to recover, got %v", err)
	}
	if reply.Message != "Sol Ring is a staple." {
		t.Errorf("unexpected message: %q", reply.Message)
	}
	if len(fake.requests) != 2 {
		t.Errorf("expected 2 upstream requests (original + retry), got %d", len(fake.requests))
	}
}

func TestRunChat_RetryFailurePropagates(t *testing.T) {
	fake := newFakeGemini(t,
		fakeResponse{status: http.StatusInternalServerError},
		fakeResponse{status: http.StatusInternalServerError},
	)
	svc := fake.chatService()

	_, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hello")})
	if err == nil {
		t.Fatal("expected failure after both attempts")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should carry the upstream status, got %v", err)
	}
	if len(fake.requests) != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", len(fake.requests))
	}
}

func TestRunChat_UnparsableAnswer(t *testing.T) {
	fake := newFakeGemini(t, textResponse("Here are some cards you might like!"))
	svc := fake.chatService()

	_, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hello")})

	var parseErr *ResponseParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected a ResponseParseError, got %v", err)
	}
	if parseErr.Raw != "Here are some cards you might like!" {
		t.Errorf("parse error should keep the raw text, got %q", parseErr.Raw)
	}
}

func TestRunChat_PlainTextFallback(t *testing.T) {
	// First part has no text but a later one does; degrade to a minimal
	// reply instead of failing.
	body := `{"candidates":[{"content":{"role":"model","parts":[{},{"text":"Just a plain answer."}]}}]}`
	fake := newFakeGemini(t, fakeResponse{body: body})
	svc := fake.chatService()

	reply, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hello")})
	if err != nil {
		t.Fatalf("RunChat failed: %v", err)
	}
	if reply.Message != "Just a plain answer." {
		t.Errorf("unexpected message: %q", reply.Message)
	}
	if reply.CardsToDisplay == nil || len(reply.CardsToDisplay) != 0 {
		t.Errorf("fallback reply should have an empty card list, got %+v", reply.CardsToDisplay)
	}
	if len(reply.Suggestions) != 0 {
		t.Errorf("fallback reply should have no suggestions, got %+v", reply.Suggestions)
	}
}

func TestRunChat_APIErrorEnvelope(t *testing.T) {
	body := `{"error":{"code":429,"message":"Resource has been exhausted"}}`
	fake := newFakeGemini(t, fakeResponse{body: body}, fakeResponse{body: body})
	svc := fake.chatService()

	_, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hello")})
	if err == nil {
		t.Fatal("expected failure on an API error envelope")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the API error code, got %v", err)
	}
}

func TestRunChat_Disabled(t *testing.T) {
	svc := &ChatService{registry: newTestRegistry(nil, nil, nil)}
	if svc.Enabled() {
		t.Fatal("service without a key should be disabled")
	}
	if _, err := svc.RunChat(context.Background(), nil, []Part{TextPart("hi")}); err == nil {
		t.Error("RunChat on a disabled service should fail")
	}
}

func TestNewChatService_Config(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL_NAME", "gemini-2.5-pro")

	svc := NewChatService(newTestRegistry(nil, nil, nil))
	if !svc.Enabled() {
		t.Error("service should be enabled with GEMINI_API_KEY set")
	}
	if svc.model != "gemini-2.5-pro" {
		t.Errorf("expected model from env, got %s", svc.model)
	}

	t.Setenv("GEMINI_MODEL_NAME", "")
	svc = NewChatService(newTestRegistry(nil, nil, nil))
	if svc.model != defaultModel {
		t.Errorf("expected default model, got %s", svc.model)
	}
}

func TestParseAssistantReply(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		reply, err := parseAssistantReply(fencedReply)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if reply.Message != "Sol Ring is a staple." {
			t.Errorf("unexpected message: %q", reply.Message)
		}
	})

	t.Run("fenced block with surrounding prose", func(t *testing.T) {
		raw := "Sure, here you go:\n" + fencedReply + "\nHope that helps!"
		reply, err := parseAssistantReply(raw)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if reply.Message != "Sol Ring is a staple." {
			t.Errorf("unexpected message: %q", reply.Message)
		}
	})

	t.Run("bare object without fence", func(t *testing.T) {
		raw := `{"message": "hi", "cardsToDisplay": [], "suggestions": []}`
		reply, err := parseAssistantReply(raw)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if reply.Message != "hi" {
			t.Errorf("unexpected message: %q", reply.Message)
		}
	})

	t.Run("nil cardsToDisplay becomes empty", func(t *testing.T) {
		raw := `{"message": "hi", "suggestions": []}`
		reply, err := parseAssistantReply(raw)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if reply.CardsToDisplay == nil {
			t.Error("cardsToDisplay should be an empty slice, not nil")
		}
	})

	t.Run("missing message", func(t *testing.T) {
		raw := `{"cardsToDisplay": [], "suggestions": []}`
		if _, err := parseAssistantReply(raw); err == nil {
			t.Error("expected failure without a message field")
		}
	})

	t.Run("missing suggestions", func(t *testing.T) {
		raw := `{"message": "hi", "cardsToDisplay": []}`
		if _, err := parseAssistantReply(raw); err == nil {
			t.Error("expected failure without a suggestions field")
		}
	})

	t.Run("plain prose", func(t *testing.T) {
		_, err := parseAssistantReply("I found some great cards for you.")
		var parseErr *ResponseParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected a ResponseParseError, got %v", err)
		}
	})

	t.Run("malformed json in fence", func(t *testing.T) {
		_, err := parseAssistantReply("```json\n{\"message\": \n```")
		var parseErr *ResponseParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected a ResponseParseError, got %v", err)
		}
	})
}
