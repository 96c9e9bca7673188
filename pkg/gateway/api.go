package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wadigest/pkg/bus"
	"wadigest/pkg/store"
	"wadigest/pkg/summary"
)

const defaultListLimit = 20

type summaryResponse struct {
	ID            string     `json:"id"`
	ChatID        string     `json:"chat_id"`
	Text          string     `json:"text"`
	Provider      string     `json:"provider,omitempty"`
	Model         string     `json:"model,omitempty"`
	Language      string     `json:"language,omitempty"`
	MessageCount  int        `json:"message_count"`
	Processed     int        `json:"processed"`
	Rejected      int        `json:"rejected"`
	WindowStart   time.Time  `json:"window_start,omitzero"`
	WindowEnd     time.Time  `json:"window_end,omitzero"`
	InputTokens   int64      `json:"input_tokens,omitempty"`
	OutputTokens  int64      `json:"output_tokens,omitempty"`
	SentMessageID string     `json:"sent_message_id,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type statsResponse struct {
	UptimeSeconds   int64     `json:"uptime_seconds"`
	SummariesStored int64     `json:"summaries_stored"`
	Bus             bus.Stats `json:"bus"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/summaries", s.handleListSummaries)
		r.Get("/summaries/{chatID}", s.handleListSummaries)
		r.Get("/summaries/{chatID}/latest", s.handleLatestSummary)
		r.Post("/summaries/{chatID}", s.handleRunSummary)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady() {
		s.writeJSON(w, http.StatusServiceUnavailable, s.currentStatus("not_ready"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.currentStatus("ready"))
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		UptimeSeconds: s.currentStatus("").UptimeSeconds,
		Bus:           s.counters.Snapshot(),
	}
	if s.deps.Store != nil {
		count, err := s.deps.Store.CountSummaries(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.SummariesStored = count
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("summary storage is not configured"))
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	summaries, err := s.deps.Store.ListSummaries(r.Context(), chi.URLParam(r, "chatID"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, item := range summaries {
		out = append(out, toSummaryResponse(item))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleLatestSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("summary storage is not configured"))
		return
	}

	latest, err := s.deps.Store.LatestSummary(r.Context(), chi.URLParam(r, "chatID"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSummaryResponse(latest))
}

// handleRunSummary generates a summary on demand. ?send=true also delivers
// it to the chat, subject to the Green API sending rules.
func (s *Service) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	send, _ := strconv.ParseBool(r.URL.Query().Get("send"))
	run, err := s.deps.Summaries.Summarize(r.Context(), chi.URLParam(r, "chatID"), summary.RunOptions{Send: send})
	switch {
	case errors.Is(err, summary.ErrTooFewMessages):
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	case errors.Is(err, summary.ErrDeliveryFailed) && run != nil && run.Summary != nil:
		s.log.Warn("Summary generated but not delivered", "chat_id", run.ChatID, "error", err)
	case err != nil:
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSummaryResponse(*run.Summary))
}

func (s *Service) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write response", "error", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, statusCode int, err error) {
	s.writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}

func toSummaryResponse(s store.Summary) summaryResponse {
	return summaryResponse{
		ID:            s.ID,
		ChatID:        s.ChatID,
		Text:          s.Text,
		Provider:      s.Provider,
		Model:         s.Model,
		Language:      s.Language,
		MessageCount:  s.MessageCount,
		Processed:     s.Processed,
		Rejected:      s.Rejected,
		WindowStart:   s.WindowStart,
		WindowEnd:     s.WindowEnd,
		InputTokens:   s.InputTokens,
		OutputTokens:  s.OutputTokens,
		SentMessageID: s.SentMessageID,
		SentAt:        s.SentAt,
		CreatedAt:     s.CreatedAt,
	}
}
