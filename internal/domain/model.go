package domain

// AIModel describes a model offered by a provider catalogue.
type AIModel struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Provider        Provider `json:"provider"`
	Description     string   `json:"description,omitempty"`
	PromptPrice     float64  `json:"promptPrice"`     // per 1M tokens
	CompletionPrice float64  `json:"completionPrice"` // per 1M tokens
	ContextLength   int      `json:"contextLength,omitempty"`
}
