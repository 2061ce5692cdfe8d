package httpapi

import (
	"net/http"
	"time"

	"github.com/set-night/interviewcoach/internal/middleware"
	"github.com/set-night/interviewcoach/internal/service"
)

// Server is the JSON API over the coach use cases.
type Server struct {
	coach       *service.CoachService
	production  bool
	frontendURL string
	limiter     *middleware.Limiter
	startedAt   time.Time
	version     string
}

type Options struct {
	Production  bool
	FrontendURL string
	Limiter     *middleware.Limiter
	Version     string
}

func NewServer(coach *service.CoachService, opts Options) *Server {
	return &Server{
		coach:       coach,
		production:  opts.Production,
		frontendURL: opts.FrontendURL,
		limiter:     opts.Limiter,
		startedAt:   time.Now(),
		version:     opts.Version,
	}
}

// Handler returns the routed API wrapped in the middleware chain. Every
// route is also served under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := map[string]methods{
		"/health":          {http.MethodGet: s.handleHealth},
		"/plan-interview":  {http.MethodPost: s.handlePlan},
		"/chat":            {http.MethodPost: s.handleChat},
		"/feedback":        {http.MethodPost: s.handleFeedback},
		"/cover-letter":    {http.MethodPost: s.handleCoverLetter, http.MethodGet: s.handleLastCoverLetter},
		"/test-connection": {http.MethodPost: s.handleTestConnection},
		"/models":          {http.MethodGet: s.handleModels},

		"/context":            {http.MethodGet: s.handleGetContext, http.MethodPut: s.handlePutContext},
		"/context/job-url":    {http.MethodPost: s.handleJobURL},
		"/context/resume-pdf": {http.MethodPost: s.handleResumePDF},
		"/settings":           {http.MethodGet: s.handleGetSettings, http.MethodPut: s.handlePutSettings},

		"/transcripts":               {http.MethodGet: s.handleListTranscripts, http.MethodDelete: s.handleClearTranscripts},
		"/transcripts/{id}":          {http.MethodGet: s.handleGetTranscript},
		"/transcripts/{id}/feedback": {http.MethodPost: s.handleTranscriptFeedback},
		"/costs":                     {http.MethodGet: s.handleGetCosts, http.MethodDelete: s.handleResetCosts},

		"/sessions":                     {http.MethodPost: s.handleStartSession},
		"/sessions/current":             {http.MethodGet: s.handleGetSession},
		"/sessions/current/messages":    {http.MethodPost: s.handleSendMessage},
		"/sessions/current/retry":       {http.MethodPost: s.handleRetry},
		"/sessions/current/end":         {http.MethodPost: s.handleEndSession},
		"/sessions/current/clear-error": {http.MethodPost: s.handleClearError},
	}
	for path, h := range routes {
		mux.Handle(path, h)
		mux.Handle("/api"+path, h)
	}
	mux.Handle("/{$}", methods{http.MethodGet: s.handleRoot})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "Route not found", ErrorCode: codeNotFound})
	})

	return middleware.Chain(mux,
		middleware.HTTPRecover,
		middleware.HTTPLogging,
		middleware.CORS(s.frontendURL),
		middleware.ClientID,
		middleware.HTTPRateLimit(s.limiter),
	)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Interview Coach API Server",
		"version": s.version,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(s.startedAt).Seconds(),
	})
}
