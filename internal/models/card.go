package models

// Card is a read-only snapshot of a single printing from the MTGJSON
// AllPrintings sqlite database. Only the columns in the chat projection are
// mapped; the underlying table has many more.
type Card struct {
	UUID            string   `json:"uuid" gorm:"column:uuid;primaryKey"`
	Name            string   `json:"name" gorm:"column:name"`
	Type            string   `json:"type" gorm:"column:type"`
	Text            string   `json:"text" gorm:"column:text"`
	ManaCost        string   `json:"manaCost" gorm:"column:manaCost"`
	ManaValue       float64  `json:"manaValue" gorm:"column:manaValue"`
	Power           *string  `json:"power" gorm:"column:power"`
	Toughness       *string  `json:"toughness" gorm:"column:toughness"`
	Rarity          string   `json:"rarity" gorm:"column:rarity"`
	SetCode         string   `json:"setCode" gorm:"column:setCode"`
	Number          string   `json:"number" gorm:"column:number"`
	EdhrecRank      *int     `json:"edhrecRank" gorm:"column:edhrecRank"`
	EdhrecSaltiness *float64 `json:"edhrecSaltiness" gorm:"column:edhrecSaltiness"`
	ColorIdentity   string   `json:"colorIdentity" gorm:"column:colorIdentity"`
	Subtypes        string   `json:"subtypes" gorm:"column:subtypes"`
	Types           string   `json:"types" gorm:"column:types"`
}

func (Card) TableName() string {
	return "cards"
}

// AssistantReply is the structured result of one chat completion run. It is
// the only artifact that reaches the client; transient tool turns are
// discarded once the run finishes.
type AssistantReply struct {
	Message        string   `json:"message"`
	CardsToDisplay []Card   `json:"cardsToDisplay"`
	Suggestions    []string `json:"suggestions"`
}

// ChatMessage is one turn of the client-held transcript. Role is "user" or
// "assistant"; the client re-sends the full transcript on every request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Response *AssistantReply `json:"response"`
}
