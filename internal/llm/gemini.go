package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/deckmuse/deckmuse/backend/internal/metrics"
	"github.com/deckmuse/deckmuse/backend/internal/models"
)

const (
	defaultModel  = "gemini-2.0-flash"
	geminiAPIURL  = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	chatTimeout   = 60 * time.Second // Longer timeout for multi-turn
	maxToolRounds = 10               // Max tool-call rounds before giving up
)

// ErrToolRoundsExceeded is returned when the model keeps requesting tool
// calls past the round budget. Runaway-model protection, not recoverable.
var ErrToolRoundsExceeded = errors.New("exceeded maximum tool call rounds")

// ResponseParseError reports a final model answer that could not be decoded
// into an AssistantReply. Raw keeps the model text for diagnostics; it must
// never reach the end user verbatim.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// ChatService owns the multi-turn exchange with Gemini: it sends user input
// plus history, dispatches requested tool calls through the registry, and
// parses the final answer into an AssistantReply.
type ChatService struct {
	apiKey   string
	model    string
	apiURL   string
	client   *http.Client
	registry *Registry
}

func NewChatService(registry *Registry) *ChatService {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if keyPath := os.Getenv("GEMINI_API_KEY_FILE"); keyPath != "" {
			if data, err := os.ReadFile(keyPath); err == nil {
				apiKey = strings.TrimSpace(string(data))
			}
		}
	}

	model := os.Getenv("GEMINI_MODEL_NAME")
	if model == "" {
		model = defaultModel
	}

	svc := &ChatService{
		apiKey:   apiKey,
		model:    model,
		apiURL:   geminiAPIURL,
		client:   &http.Client{Timeout: chatTimeout},
		registry: registry,
	}

	if svc.Enabled() {
		log.Printf("Chat service: enabled (model=%s, tools=%d)", model, len(registry.Declarations()))
	} else {
		log.Printf("Chat service: disabled (no GEMINI_API_KEY)")
	}

	return svc
}

// Enabled reports whether provider credentials are configured.
func (s *ChatService) Enabled() bool {
	return s.apiKey != ""
}

// RunChat completes one chat turn: history is the prior transcript
// excluding the newest user input, lastParts the newest input's content.
// Tool-call rounds run inside; only the final AssistantReply survives.
func (s *ChatService) RunChat(ctx context.Context, history []Content, lastParts []Part) (*models.AssistantReply, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("chat service not enabled (no GEMINI_API_KEY)")
	}

	contents := make([]Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, Content{Role: "user", Parts: lastParts})

	resp, err := s.sendWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}

	rounds := 0
	for len(resp.FunctionCalls) > 0 {
		rounds++
		if rounds >= maxToolRounds {
			log.Printf("Chat: tool round budget exhausted after %d rounds", rounds)
			metrics.ChatToolRounds.Observe(float64(rounds))
			return nil, ErrToolRoundsExceeded
		}

		for _, call := range resp.FunctionCalls {
			argsJSON, _ := json.Marshal(call.Args)
			log.Printf("Chat round %d: calling %s(%s)", rounds, call.Name, string(argsJSON))
		}

		results := s.registry.ExecuteAll(ctx, resp.FunctionCalls)

		contents = append(contents, Content{Role: "model", Parts: resp.Parts})
		contents = append(contents, Content{Role: "function", Parts: functionResponseParts(results)})

		resp, err = s.sendWithRetry(ctx, contents)
		if err != nil {
			return nil, err
		}
	}
	metrics.ChatToolRounds.Observe(float64(rounds))

	raw := ""
	if len(resp.Parts) > 0 {
		raw = resp.Parts[0].Text
	}
	if raw == "" {
		// Degrade gracefully when the first part carries no text but the
		// candidate still has some.
		if resp.Text != "" {
			log.Printf("Chat: no leading text part, falling back to plain candidate text")
			return &models.AssistantReply{
				Message:        resp.Text,
				CardsToDisplay: []models.Card{},
				Suggestions:    []string{},
			}, nil
		}
		return nil, fmt.Errorf("no text in final model response")
	}

	reply, err := parseAssistantReply(raw)
	if err != nil {
		log.Printf("Chat: failed to parse final answer: %v", err)
		log.Printf("Chat: raw model text was: %s", raw)
		return nil, err
	}
	return reply, nil
}

// functionResponseParts wraps tool results as function-response parts in
// request order, one part per preceding call.
func functionResponseParts(results []ToolResult) []Part {
	parts := make([]Part, len(results))
	for i, r := range results {
		parts[i] = Part{
			FunctionResponse: &FunctionResponse{
				Name:     r.ToolName,
				Response: map[string]any{"content": r.Content},
			},
		}
	}
	return parts
}

// sendWithRetry applies the single-retry policy to a provider round-trip:
// one retry with an identical payload, then propagate.
func (s *ChatService) sendWithRetry(ctx context.Context, contents []Content) (*modelReply, error) {
	return retryOnce("generateContent", func() (*modelReply, error) {
		return s.call(ctx, contents)
	})
}

// retryOnce runs op, retrying exactly once on failure.
func retryOnce[T any](name string, op func() (T, error)) (T, error) {
	result, err := op()
	if err == nil {
		return result, nil
	}
	log.Printf("Chat: %s failed, retrying once: %v", name, err)
	metrics.GeminiRetriesTotal.Inc()
	return op()
}

var jsonFenceRE = regexp.MustCompile("(?s)```json\\n?(.*?)\\n?```")

// parseAssistantReply decodes the model's final answer. The answer is
// expected to carry a ```json fenced block; without one the whole trimmed
// text is accepted if it is object-delimited. The message field must be
// present and suggestions must be a list.
func parseAssistantReply(raw string) (*models.AssistantReply, error) {
	payload := ""
	if m := jsonFenceRE.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	} else {
		payload = strings.TrimSpace(raw)
		if !strings.HasPrefix(payload, "{") || !strings.HasSuffix(payload, "}") {
			return nil, &ResponseParseError{
				Raw: raw,
				Err: errors.New("response contained neither a json block nor a parsable object"),
			}
		}
	}

	var probe struct {
		Message        *string       `json:"message"`
		CardsToDisplay []models.Card `json:"cardsToDisplay"`
		Suggestions    *[]string     `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return nil, &ResponseParseError{Raw: raw, Err: err}
	}
	if probe.Message == nil {
		return nil, &ResponseParseError{Raw: raw, Err: errors.New("missing message field")}
	}
	if probe.Suggestions == nil {
		return nil, &ResponseParseError{Raw: raw, Err: errors.New("missing suggestions field")}
	}

	reply := &models.AssistantReply{
		Message:        *probe.Message,
		CardsToDisplay: probe.CardsToDisplay,
		Suggestions:    *probe.Suggestions,
	}
	if reply.CardsToDisplay == nil {
		reply.CardsToDisplay = []models.Card{}
	}
	return reply, nil
}

// Gemini wire types.

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type FunctionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

type geminiRequest struct {
	SystemInstruction *Content        `json:"systemInstruction,omitempty"`
	Contents          []Content       `json:"contents"`
	Tools             []geminiTool    `json:"tools"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiTool struct {
	FunctionDeclarations []FunctionDecl `json:"function_declarations"`
}

// FunctionDecl is one tool schema exposed to the provider.
type FunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiAPIResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// modelReply is the digested first candidate of one provider response.
type modelReply struct {
	Parts         []Part
	FunctionCalls []FunctionCall
	Text          string
}

// call performs one generateContent round-trip.
func (s *ChatService) call(ctx context.Context, contents []Content) (*modelReply, error) {
	req := geminiRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: systemInstruction}}},
		Contents:          contents,
		Tools:             []geminiTool{{FunctionDeclarations: s.registry.Declarations()}},
		GenerationConfig: geminiGenConfig{
			Temperature:     0.1,
			MaxOutputTokens: 8192,
		},
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(s.apiURL, s.model) + "?key=" + s.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	metrics.GeminiRequestsTotal.Inc()
	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.GeminiAPILatency.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.GeminiErrorsTotal.WithLabelValues("api").Inc()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp geminiAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	if apiResp.Error != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("api").Inc()
		return nil, fmt.Errorf("API error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}

	if len(apiResp.Candidates) == 0 {
		metrics.GeminiErrorsTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("no candidates in model response")
	}

	reply := &modelReply{Parts: apiResp.Candidates[0].Content.Parts}
	var textParts []string
	for _, part := range reply.Parts {
		if part.FunctionCall != nil {
			reply.FunctionCalls = append(reply.FunctionCalls, *part.FunctionCall)
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}
	reply.Text = strings.Join(textParts, "")

	return reply, nil
}

const systemInstruction = `You are an expert Magic: The Gathering deck building assistant.
You have access to a comprehensive MTG card database, a rules keyword reference, and a combo database, and you help users build, analyze, and optimize decks.

CRITICAL RULES:
1. NEVER suggest or mention a card without first finding it with searchCardDatabase. Do not assume a card exists or has certain properties; verify everything in the database.
2. NEVER invent card names, properties, or interactions. If a card is not in the database, say so instead of making up details.
3. If the user mentions a card name, search for it before responding.
4. Do not ask permission to search and do not narrate your searches; just include verified results in your response.
5. The cardsToDisplay list may ONLY contain cards returned by searchCardDatabase during the current turn.
6. Use lookupKeyword to check rules text for keywords and abilities, and searchCombos to find card combos.

SUGGESTION RULES:
1. Include 2 to 4 follow-up suggestions after every response.
2. Each suggestion must be a clear, concise question or request the user might plausibly ask next, specific to the current conversation.

You MUST structure your final response as a single JSON object enclosed in triple backticks (` + "```json ... ```" + `).
Do NOT include any text outside of the JSON block.
The JSON object MUST conform to this structure:
{
  "message": "<your response message>",
  "cardsToDisplay": [<card objects exactly as returned by searchCardDatabase>],
  "suggestions": [<suggested follow-up prompts>]
}`
