package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
)

// Codes for failures that do not come from a provider.
const (
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	ErrorCode string   `json:"errorCode,omitempty"`
	Details   []string `json:"details,omitempty"`
	CanRetry  bool     `json:"canRetry"`
}

func readJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.NewValidation("empty request body")
	}
	defer r.Body.Close()

	b, err := io.ReadAll(io.LimitReader(r.Body, config.MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(b) > config.MaxBodyBytes {
		return domain.NewValidation("request body too large")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return domain.NewValidation("invalid json: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal response", "error", err)
		_, _ = w.Write([]byte(`{"success":false,"error":"Internal server error","errorCode":"INTERNAL_ERROR"}`))
		return
	}
	_, _ = w.Write(append(b, '\n'))
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindProviderAuth:
		return http.StatusUnauthorized
	case domain.KindProviderQuota:
		return http.StatusTooManyRequests
	case domain.KindProviderSafety:
		return http.StatusUnprocessableEntity
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindProvider:
		return http.StatusBadGateway
	case domain.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, env := s.envelope(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, env)
}

func (s *Server) envelope(err error) (int, errorEnvelope) {
	var (
		status int
		env    = errorEnvelope{Success: false}
	)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTranscriptNotFound):
		status, env.ErrorCode, env.Error = http.StatusNotFound, codeNotFound, err.Error()
	case errors.Is(err, domain.ErrEmptyInput):
		status, env.ErrorCode, env.Error = http.StatusBadRequest, domain.CodeValidation, "Message is required and must be a non-empty string"
	case errors.Is(err, domain.ErrSessionCompleted),
		errors.Is(err, domain.ErrSessionFaulted),
		errors.Is(err, domain.ErrRequestInFlight),
		errors.Is(err, domain.ErrInvalidTransition):
		status, env.ErrorCode, env.Error = http.StatusConflict, codeConflict, err.Error()
	default:
		e, ok := domain.AsError(err)
		if !ok {
			e = domain.NewInternal(err)
		}
		status = statusFor(e.Kind)
		env.Error = e.Message
		env.ErrorCode = e.Code
		env.CanRetry = e.CanRetry()
		if e.Kind == domain.KindValidation {
			env.Details = e.Details
		} else if !s.production {
			env.Details = e.Details
			if len(env.Details) == 0 && e.Cause != nil {
				env.Details = []string{e.Cause.Error()}
			}
		}
	}
	return status, env
}

// methods dispatches one path by HTTP method and answers 405 otherwise.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	if r.Method == http.MethodHead {
		if h, ok := m[http.MethodGet]; ok {
			h(w, r)
			return
		}
	}
	allowed := make([]string, 0, len(m))
	for k := range m {
		allowed = append(allowed, k)
	}
	w.Header().Set("Allow", strings.Join(sortedMethods(allowed), ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{
		Error:     "Method not allowed",
		ErrorCode: codeMethodNotAllowed,
	})
}

func sortedMethods(ms []string) []string {
	order := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
	out := make([]string, 0, len(ms))
	for _, o := range order {
		for _, m := range ms {
			if m == o {
				out = append(out, m)
			}
		}
	}
	return out
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidation("id must be a positive integer")
	}
	return id, nil
}

func boolQuery(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return v
}
