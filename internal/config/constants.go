package config

import "time"

const (
	// Provider request deadline, per attempt
	RequestTimeout = 60 * time.Second

	// Chat retry policy
	MaxAttempts = 3
	BackoffUnit = 1 * time.Second

	// Chat input limits
	MaxMessageLen = 5000
	HistoryWindow = 10

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Model cache duration
	ModelCacheDuration = 1 * time.Hour

	// Default models
	DefaultGeminiModel         = "gemini-1.5-flash-8b"
	DefaultGeminiFallbackModel = "gemini-1.5-flash"
	DefaultOpenRouterModel     = "anthropic/claude-3-haiku"

	// Sampling defaults
	InterviewTemperature   = 0.7
	InterviewMaxTokens     = 1000
	PlanningTemperature    = 0.3
	PlanningMaxTokens      = 2000
	FeedbackTemperature    = 0.3
	FeedbackMaxTokens      = 2000
	CoverLetterTemperature = 0.7
	CoverLetterMaxTokens   = 1500
	PlanTemperature        = 0.7
	PlanMaxTokens          = 1500
	CheckTemperature       = 0.1
	CheckMaxTokens         = 50
	GeminiTopP             = 0.95
	GeminiTopK             = 40

	// Idle session cleanup
	SessionSweepInterval = 60 * time.Second
	SessionIdleTTL       = 2 * time.Hour

	// Request body limit
	MaxBodyBytes  = 1 << 20
	MaxUploadSize = 10 << 20

	// Graceful shutdown
	ShutdownTimeout = 10 * time.Second
)
