package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/deckmuse/deckmuse/backend/internal/metrics"
	"github.com/deckmuse/deckmuse/backend/internal/models"
	"github.com/deckmuse/deckmuse/backend/internal/services"
)

// CardSearcher runs filter-tree searches against the card database.
// Implemented by services.CardSearchService.
type CardSearcher interface {
	Search(ctx context.Context, filter *services.Filter, take int, orderBy *services.OrderBy) ([]models.Card, error)
}

// GlossaryReader answers keyword lookups. Implemented by
// services.GlossaryService.
type GlossaryReader interface {
	Lookup(keyword string) string
}

// ComboSearcher queries the external combo database. Implemented by
// services.ComboService.
type ComboSearcher interface {
	Search(ctx context.Context, query string) ([]services.Combo, error)
}

// ToolExecutor runs one tool call. Arguments arrive untyped from the model;
// each executor validates and coerces its own.
type ToolExecutor func(ctx context.Context, args map[string]any) (any, error)

// ToolResult is the string payload handed back to the model for one call.
type ToolResult struct {
	ToolName string
	Content  string
}

// Registry is the immutable tool table: declaration schemas exposed to the
// provider plus the executor for each declared name. Built once at startup
// and read concurrently without coordination.
type Registry struct {
	declarations []FunctionDecl
	executors    map[string]ToolExecutor
}

func NewRegistry(cards CardSearcher, glossary GlossaryReader, combos ComboSearcher) *Registry {
	return &Registry{
		declarations: []FunctionDecl{
			cardDatabaseDecl,
			keywordDecl,
			comboSearchDecl,
		},
		executors: map[string]ToolExecutor{
			"searchCardDatabase": searchCardDatabaseExecutor(cards),
			"lookupKeyword":      lookupKeywordExecutor(glossary),
			"searchCombos":       searchCombosExecutor(combos),
		},
	}
}

// Declarations returns the tool schemas for the provider request.
func (r *Registry) Declarations() []FunctionDecl {
	return r.declarations
}

// Execute runs one requested call. Unknown tools and executor failures are
// converted to error-describing payloads rather than native errors, so the
// model can see what went wrong and recover.
func (r *Registry) Execute(ctx context.Context, call FunctionCall) ToolResult {
	executor, ok := r.executors[call.Name]
	if !ok {
		log.Printf("Tool registry: no executor registered for %q", call.Name)
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "not_found").Inc()
		return ToolResult{
			ToolName: call.Name,
			Content:  fmt.Sprintf("Error: no executor found for tool: %s", call.Name),
		}
	}

	result, err := executor(ctx, call.Args)
	if err != nil {
		log.Printf("Tool registry: %s failed: %v", call.Name, err)
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return ToolResult{
			ToolName: call.Name,
			Content:  fmt.Sprintf("Error executing tool %s: %v", call.Name, err),
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return ToolResult{
			ToolName: call.Name,
			Content:  fmt.Sprintf("Error executing tool %s: unserializable result: %v", call.Name, err),
		}
	}

	metrics.ToolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	return ToolResult{ToolName: call.Name, Content: string(payload)}
}

// ExecuteAll runs the requested calls to completion, one after another,
// and returns results in request order.
func (r *Registry) ExecuteAll(ctx context.Context, calls []FunctionCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		results[i] = r.Execute(ctx, call)
	}
	return results
}

// decodeArgs round-trips the untyped argument map through JSON into a
// typed parameter struct.
func decodeArgs(args map[string]any, into any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func searchCardDatabaseExecutor(cards CardSearcher) ToolExecutor {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var params struct {
			Where   *services.Filter  `json:"where"`
			Take    int               `json:"take"`
			OrderBy *services.OrderBy `json:"orderBy"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return nil, err
		}
		return cards.Search(ctx, params.Where, params.Take, params.OrderBy)
	}
}

func lookupKeywordExecutor(glossary GlossaryReader) ToolExecutor {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var params struct {
			Keyword string `json:"keyword"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return nil, err
		}
		return glossary.Lookup(params.Keyword), nil
	}
}

func searchCombosExecutor(combos ComboSearcher) ToolExecutor {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var params struct {
			Query string `json:"query"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return nil, err
		}
		if params.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		return combos.Search(ctx, params.Query)
	}
}

// Tool declarations exposed to the model.

var cardDatabaseDecl = FunctionDecl{
	Name: "searchCardDatabase",
	Description: `Searches the Magic: The Gathering card database. This search is fast; use it freely whenever you need to verify card details or find cards by any criteria, but combine related lookups into one query (OR for multiple names, AND for multiple criteria) where possible.
The 'where' parameter is a filter tree: field conditions plus AND, OR, and NOT branches. For string fields use the contains operator, e.g. where: { name: { contains: 'Sol Ring' } }. Results are capped at 200 cards.
Card types: the singular 'type' field holds the full type line (e.g. 'Legendary Creature — Goblin'); prefer it for combined types via contains. The plural 'types' field is comma-separated individual types.
Comma-separated fields ('colors', 'colorIdentity', 'keywords', 'subtypes', 'types') must be searched one value at a time with contains, combined with AND. Example, blue/red legendary creatures: { AND: [ { colorIdentity: { contains: 'U' } }, { colorIdentity: { contains: 'R' } }, { type: { contains: 'Legendary Creature' } } ] }. Never search a combined value like 'Flying,Vigilance' in one contains.
Multiple specific cards: { OR: [ { name: { contains: 'Sol Ring' } }, { name: { contains: 'Arcane Signet' } } ] }.
'colors' derives strictly from mana cost; 'colorIdentity' also counts rules-text symbols and is the right field for Commander searches.`,
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"where": map[string]any{
				"type":        "object",
				"description": "Filter tree. Field conditions like { name: { contains: 'text' } } or { rarity: { equals: 'rare' } }, combinable with AND, OR, NOT. Fields: name, type, text, manaCost, manaValue, power, toughness, rarity, setCode, edhrecRank, colors, colorIdentity, keywords, subtypes, types.",
				"properties": map[string]any{
					"name":          map[string]any{"type": "string", "description": "Card name (use contains). E.g. 'Braids, Arisen Nightmare'."},
					"type":          map[string]any{"type": "string", "description": "Full type line (use contains). E.g. 'Legendary Creature — Nightmare', 'Instant'."},
					"text":          map[string]any{"type": "string", "description": "Rules text (use contains). E.g. 'Counter target spell.'."},
					"manaValue":     map[string]any{"type": "number", "description": "Converted mana cost (numeric). E.g. 3."},
					"power":         map[string]any{"type": "string", "description": "Creature power as text, e.g. '3'; null for non-creatures."},
					"toughness":     map[string]any{"type": "string", "description": "Creature toughness as text, e.g. '3'; null for non-creatures."},
					"rarity":        map[string]any{"type": "string", "description": "Card rarity ('common', 'uncommon', 'rare', 'mythic'). Use equals."},
					"setCode":       map[string]any{"type": "string", "description": "Set code, e.g. 'DMU', 'TMP'. Use equals."},
					"edhrecRank":    map[string]any{"type": "number", "description": "EDHREC rank; lower is more popular."},
					"colors":        map[string]any{"type": "string", "description": "Comma-separated colors from the mana cost, e.g. 'W,U'. Search each value with AND/contains."},
					"colorIdentity": map[string]any{"type": "string", "description": "Comma-separated color identity, e.g. 'W,U,B'. Search each value with AND/contains."},
					"keywords":      map[string]any{"type": "string", "description": "Comma-separated keywords, e.g. 'Flying,Vigilance'. Search each value with AND/contains."},
					"subtypes":      map[string]any{"type": "string", "description": "Comma-separated subtypes, e.g. 'Goblin,Warrior'. Search each value with AND/contains."},
					"types":         map[string]any{"type": "string", "description": "Comma-separated individual types, e.g. 'Legendary,Creature,Elf'. Prefer the singular 'type' field for combined searches."},
				},
			},
			"take": map[string]any{
				"type":        "integer",
				"description": "Maximum number of cards to return (capped at 200)",
			},
			"orderBy": map[string]any{
				"type":        "object",
				"description": "Optional single-field sort. Without it, cards come back in no particular order.",
				"properties": map[string]any{
					"field":     map[string]any{"type": "string", "description": "Field to order by, e.g. 'name', 'manaValue', 'edhrecRank'"},
					"direction": map[string]any{"type": "string", "description": "Order direction ('asc' or 'desc')", "enum": []string{"asc", "desc"}},
				},
			},
		},
		"required": []string{"where", "take"},
	},
}

var keywordDecl = FunctionDecl{
	Name:        "lookupKeyword",
	Description: "Provides detailed rules information about Magic: The Gathering keywords and abilities. Use it to understand card mechanics and rules text.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keyword": map[string]any{
				"type":        "string",
				"description": "The keyword to look up. If not provided, returns the full keyword reference.",
			},
		},
		"required": []string{},
	},
}

var comboSearchDecl = FunctionDecl{
	Name:        "searchCombos",
	Description: "Searches the Commander Spellbook combo database for Magic: The Gathering card combos. Returns combos matching the search query with the cards they use, the effects they produce, and prerequisites.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query to find card combos, e.g. a card name or effect",
			},
		},
		"required": []string{"query"},
	},
}
