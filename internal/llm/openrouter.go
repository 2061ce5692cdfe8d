package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

const openRouterTitle = "AI Coach Interview Platform"

type openRouterBackend struct {
	baseURL    string
	referer    string
	catalogKey string
	httpClient *http.Client
	cache      *ModelsCache
}

func newOpenRouterBackend(baseURL, referer, catalogKey string, httpClient *http.Client) *openRouterBackend {
	return &openRouterBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		referer:    referer,
		catalogKey: catalogKey,
		httpClient: httpClient,
		cache:      NewModelsCache(config.ModelCacheDuration),
	}
}

func (o *openRouterBackend) provider() domain.Provider { return domain.ProviderOpenRouter }
func (o *openRouterBackend) displayName() string        { return "OpenRouter" }
func (o *openRouterBackend) defaultModel() string       { return config.DefaultOpenRouterModel }

// OpenRouter routes across upstream providers itself, so there is no
// client-side model fallback.
func (o *openRouterBackend) fallbackModel(string) string { return "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func buildMessages(req request) []chatMessage {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		role := "assistant"
		if m.Sender == domain.SenderUser {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}
	return append(messages, chatMessage{Role: "user", Content: req.Message})
}

func (o *openRouterBackend) generate(ctx context.Context, apiKey string, req request) (*Reply, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        0.95,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("HTTP-Referer", o.referer)
	httpReq.Header.Set("X-Title", openRouterTitle)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode >= 300 || chatResp.Error != nil {
		msg := http.StatusText(resp.StatusCode)
		if chatResp.Error != nil && chatResp.Error.Message != "" {
			msg = chatResp.Error.Message
		}
		return nil, &apiError{Status: resp.StatusCode, Message: msg}
	}

	content := ""
	if len(chatResp.Choices) > 0 {
		content = chatResp.Choices[0].Message.Content
	}
	return &Reply{
		Message: content,
		Model:   req.Model,
		Usage: domain.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// ListModels returns the OpenRouter catalogue, cached for ModelCacheDuration.
func (o *openRouterBackend) ListModels(ctx context.Context) ([]domain.AIModel, error) {
	if cached := o.cache.Get(); cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if o.catalogKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.catalogKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &apiError{Status: resp.StatusCode, Message: "list models failed"}
	}

	var result struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Pricing     struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
			ContextLength int `json:"context_length"`
			TopProvider   struct {
				ContextLength int `json:"context_length"`
			} `json:"top_provider"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}

	models := make([]domain.AIModel, 0, len(result.Data))
	for _, m := range result.Data {
		promptPrice, _ := strconv.ParseFloat(m.Pricing.Prompt, 64)
		completionPrice, _ := strconv.ParseFloat(m.Pricing.Completion, 64)

		ctxLen := m.ContextLength
		if m.TopProvider.ContextLength > 0 {
			ctxLen = m.TopProvider.ContextLength
		}

		// Prices from OpenRouter are per token, convert to per 1M tokens
		models = append(models, domain.AIModel{
			ID:              m.ID,
			Name:            m.Name,
			Provider:        domain.ProviderOpenRouter,
			Description:     m.Description,
			PromptPrice:     promptPrice * 1_000_000,
			CompletionPrice: completionPrice * 1_000_000,
			ContextLength:   ctxLen,
		})
	}

	o.cache.Set(models)
	return models, nil
}
