package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/prompt"
)

type geminiBackend struct {
	baseURL    string
	httpClient *http.Client
}

func newGeminiBackend(baseURL string, httpClient *http.Client) *geminiBackend {
	return &geminiBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (g *geminiBackend) provider() domain.Provider { return domain.ProviderGemini }
func (g *geminiBackend) displayName() string        { return "Gemini" }
func (g *geminiBackend) defaultModel() string       { return config.DefaultGeminiModel }

// fallbackModel swaps between the 8b and the regular flash model.
func (g *geminiBackend) fallbackModel(model string) string {
	if strings.Contains(model, "flash-8b") {
		return config.DefaultGeminiFallbackModel
	}
	return config.DefaultGeminiModel
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
		TopP            float64 `json:"topP"`
		TopK            int     `json:"topK"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// fullPrompt flattens the system prompt, history and new message into the
// single user turn generateContent receives.
func fullPrompt(req request) string {
	var sb strings.Builder
	if req.SystemPrompt != "" {
		sb.WriteString(req.SystemPrompt)
		sb.WriteString("\n\n")
	}
	if len(req.History) > 0 {
		sb.WriteString("История диалога:\n")
		sb.WriteString(prompt.Transcript(req.History))
		sb.WriteString("\n\n")
	}
	sb.WriteString(prompt.RoleLabel(domain.SenderUser) + ": " + req.Message + "\n")
	sb.WriteString(prompt.RoleLabel(domain.SenderAI) + ":")
	return sb.String()
}

func (g *geminiBackend) generate(ctx context.Context, apiKey string, req request) (*Reply, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: fullPrompt(req)}}}}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	body.GenerationConfig.TopP = config.GeminiTopP
	body.GenerationConfig.TopK = config.GeminiTopK

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := g.baseURL + "/models/" + url.PathEscape(req.Model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode >= 300 || out.Error != nil {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, &apiError{Status: resp.StatusCode, Message: msg}
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, &apiError{Message: "prompt blocked by safety filters: " + out.PromptFeedback.BlockReason}
	}

	var text strings.Builder
	finish := ""
	if len(out.Candidates) > 0 {
		finish = out.Candidates[0].FinishReason
		for _, p := range out.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" && finish == "SAFETY" {
		return nil, &apiError{Message: "response blocked by safety filters"}
	}

	return &Reply{
		Message: text.String(),
		Model:   req.Model,
		Usage: domain.Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// GeminiModels is the static catalogue offered for the primary provider.
func GeminiModels() []domain.AIModel {
	return []domain.AIModel{
		{ID: "gemini-1.5-flash-8b", Name: "Gemini 1.5 Flash-8B", Provider: domain.ProviderGemini, ContextLength: 1_000_000},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: domain.ProviderGemini, ContextLength: 1_000_000},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: domain.ProviderGemini, ContextLength: 2_000_000},
	}
}
