package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/set-night/interviewcoach/internal/chat"
	"github.com/set-night/interviewcoach/internal/config"
	"github.com/set-night/interviewcoach/internal/domain"
	"github.com/set-night/interviewcoach/internal/interview"
	"github.com/set-night/interviewcoach/internal/repository"
	"github.com/set-night/interviewcoach/internal/service"
)

type contextBody struct {
	Context  domain.Context      `json:"context"`
	Settings *domain.RawSettings `json:"settings"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.coach.PlanInterview(r.Context(), body.Context, body.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, plan)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		chat.Request
		Settings *domain.RawSettings `json:"settings"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.coach.Chat(r.Context(), body.Request, body.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reply)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []domain.Message    `json:"messages"`
		Context  domain.Context      `json:"context"`
		Settings *domain.RawSettings `json:"settings"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.coach.Feedback(r.Context(), body.Messages, body.Context, body.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reply)
}

func (s *Server) handleCoverLetter(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.coach.CoverLetter(r.Context(), body.Context, body.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reply)
}

func (s *Server) handleLastCoverLetter(w http.ResponseWriter, r *http.Request) {
	letter, err := s.coach.LastCoverLetter(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, letter)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.coach.TestConnection(r.Context(), body.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reply)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.coach.Models(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, models)
}

type contextView struct {
	domain.Context
	Validation domain.ContextValidation `json:"validation"`
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	dc, v, err := s.coach.Context(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, contextView{Context: dc, Validation: v})
}

// handlePutContext updates only the fields present in the body.
func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobText    *string `json:"jobText"`
		JobTitle   *string `json:"jobTitle"`
		Company    *string `json:"company"`
		ResumeText *string `json:"resumeText"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	if body.JobText != nil || body.JobTitle != nil || body.Company != nil {
		job, err := s.coach.Job(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if body.JobText != nil {
			job.Text, job.Description = *body.JobText, ""
		}
		if body.JobTitle != nil {
			job.Position, job.Title = *body.JobTitle, ""
		}
		if body.Company != nil {
			job.Company = *body.Company
		}
		if err := s.coach.SaveJob(ctx, job); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if body.ResumeText != nil {
		if err := s.coach.SaveResume(ctx, repository.ResumeData{Text: *body.ResumeText}); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.handleGetContext(w, r)
}

func (s *Server) handleJobURL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		s.writeError(w, r, domain.NewValidation("url is required"))
		return
	}
	job, err := s.coach.ImportJobURL(r.Context(), body.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, job)
}

// handleResumePDF accepts a multipart "file" field or a raw application/pdf body.
func (s *Server) handleResumePDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+1<<20)

	var (
		src  io.Reader
		name string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
			s.writeError(w, r, uploadError(err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, r, domain.NewValidation("file field is required"))
			return
		}
		defer file.Close()
		src, name = file, header.Filename
	} else {
		src, name = r.Body, r.URL.Query().Get("name")
	}

	resume, err := s.coach.ImportResumePDF(r.Context(), src, name)
	if err != nil {
		s.writeError(w, r, uploadError(err))
		return
	}
	writeData(w, http.StatusOK, resume)
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.NewValidation("file is too large")
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewValidation("invalid upload: " + err.Error())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.coach.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawSettings
	if err := readJSON(r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings, err := s.coach.SaveSettings(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, stats, err := s.coach.History(r.Context(), service.HistoryQuery{
		Search: q.Get("search"),
		Sort:   service.HistorySort(q.Get("sort")),
		Desc:   !strings.EqualFold(q.Get("order"), "asc"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"items": entries, "stats": stats})
}

func (s *Server) handleClearTranscripts(w http.ResponseWriter, r *http.Request) {
	if err := s.coach.ClearHistory(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.coach.Transcript(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleTranscriptFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fb, cached, err := s.coach.TranscriptFeedback(r.Context(), id, boolQuery(r, "refresh"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"feedback": fb, "cached": cached})
}

func (s *Server) handleGetCosts(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coach.Costs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleResetCosts(w http.ResponseWriter, r *http.Request) {
	if err := s.coach.ResetCosts(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"reset": true})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	c, err := s.coach.StartInterview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, err := s.coach.Session(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c.Snapshot())
}

type turnView struct {
	Message *domain.Message    `json:"message"`
	Session interview.Snapshot `json:"session"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID      string `json:"id"`
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	text := body.Text
	if text == "" {
		text = body.Message
	}
	if len([]rune(text)) > config.MaxMessageLen {
		s.writeError(w, r, domain.NewValidation("Message is too long (max 5000 characters)"))
		return
	}

	c, err := s.coach.Session(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := c.Send(r.Context(), body.ID, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, turnView{Message: msg, Session: c.Snapshot()})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	c, err := s.coach.Session(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := c.Retry(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, turnView{Message: msg, Session: c.Snapshot()})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	t, err := s.coach.EndInterview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"transcript": t})
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	c, err := s.coach.Session(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.ClearError(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c.Snapshot())
}
