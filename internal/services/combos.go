package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/deckmuse/deckmuse/backend/internal/metrics"
)

const (
	comboDefaultBaseURL = "https://commanderspellbook.com/api/combo-search"
	comboSearchTimeout  = 10 * time.Second
	comboCacheSize      = 128
)

// ComboService fetches combo listings from the Commander Spellbook search
// endpoint. Results are cached per query and outbound calls are rate
// limited as a courtesy to the third-party service.
type ComboService struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *lru.Cache[string, []Combo]
}

// ComboCard identifies one card used by a combo.
type ComboCard struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	OracleID string `json:"oracleId"`
	TypeLine string `json:"typeLine"`
}

// ComboCardUse describes how a combo uses a card.
type ComboCardUse struct {
	Card            ComboCard `json:"card"`
	ZoneLocations   []string  `json:"zoneLocations"`
	MustBeCommander bool      `json:"mustBeCommander"`
	Quantity        int       `json:"quantity"`
}

// ComboFeature is one effect a combo produces.
type ComboFeature struct {
	Feature struct {
		Name string `json:"name"`
	} `json:"feature"`
	Quantity int `json:"quantity"`
}

// ComboLegalities lists format legality flags for a combo.
type ComboLegalities struct {
	Commander bool `json:"commander"`
	Vintage   bool `json:"vintage"`
	Legacy    bool `json:"legacy"`
	Modern    bool `json:"modern"`
	Pioneer   bool `json:"pioneer"`
	Standard  bool `json:"standard"`
	Pauper    bool `json:"pauper"`
	Brawl     bool `json:"brawl"`
}

// ComboPrices holds vendor price strings for the full combo.
type ComboPrices struct {
	TCGPlayer   string `json:"tcgplayer"`
	CardKingdom string `json:"cardkingdom"`
	CardMarket  string `json:"cardmarket"`
}

// Combo is one entry from the combo database.
type Combo struct {
	ID                   string          `json:"id"`
	Status               string          `json:"status"`
	Uses                 []ComboCardUse  `json:"uses"`
	Produces             []ComboFeature  `json:"produces"`
	Identity             string          `json:"identity"`
	ManaNeeded           string          `json:"manaNeeded"`
	ManaValueNeeded      int             `json:"manaValueNeeded"`
	EasyPrerequisites    string          `json:"easyPrerequisites"`
	NotablePrerequisites string          `json:"notablePrerequisites"`
	Description          string          `json:"description"`
	Notes                string          `json:"notes"`
	Popularity           int             `json:"popularity"`
	BracketTag           string          `json:"bracketTag"`
	Legalities           ComboLegalities `json:"legalities"`
	Prices               ComboPrices     `json:"prices"`
	VariantCount         int             `json:"variantCount"`
}

// comboEnvelope is the nested response wrapper the endpoint returns.
type comboEnvelope struct {
	PageProps struct {
		Combos []Combo `json:"combos"`
		Count  int     `json:"count"`
	} `json:"pageProps"`
}

func NewComboService() *ComboService {
	baseURL := os.Getenv("COMBO_API_URL")
	if baseURL == "" {
		baseURL = comboDefaultBaseURL
	}

	cache, err := lru.New[string, []Combo](comboCacheSize)
	if err != nil {
		log.Printf("Failed to create combo cache: %v", err)
	}

	return &ComboService{
		client:  &http.Client{Timeout: comboSearchTimeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		cache:   cache,
	}
}

// Search issues a single GET for the query and returns the combo list from
// the response envelope. Any non-200 status is a failure carrying the
// status code. No retry, no pagination.
func (s *ComboService) Search(ctx context.Context, query string) ([]Combo, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(query); ok {
			metrics.ComboCacheHits.Inc()
			return cached, nil
		}
		metrics.ComboCacheMisses.Inc()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("combo search canceled: %w", err)
	}

	reqURL := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create combo request: %w", err)
	}

	metrics.ComboRequestsTotal.Inc()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("combo search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("combo search returned status %d", resp.StatusCode)
	}

	var envelope comboEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode combo response: %w", err)
	}

	combos := envelope.PageProps.Combos
	log.Printf("Combo search: %d combos for %q", len(combos), query)
	if s.cache != nil {
		s.cache.Add(query, combos)
	}
	return combos, nil
}
