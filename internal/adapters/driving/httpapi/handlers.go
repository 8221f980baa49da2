package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// maxQuestionBytes bounds request bodies on the ask routes.
const maxQuestionBytes = 16 << 10

// maxSearchCount caps the k and n search parameters.
const maxSearchCount = 50

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	ID           string              `json:"id"`
	Answer       string              `json:"answer"`
	QuestionType domain.QuestionType `json:"question_type"`
	InDomain     bool                `json:"in_domain"`
	Citations    []domain.Citation   `json:"citations"`
	Trace        []domain.RouteState `json:"trace,omitempty"`
}

type searchResponse struct {
	Results []domain.RetrievalResult `json:"results"`
	Count   int                      `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newAskResponse(state *domain.QueryState, trace bool) askResponse {
	resp := askResponse{
		ID:           state.ID,
		Answer:       state.Answer,
		QuestionType: state.QuestionType,
		InDomain:     state.InDomain,
		Citations:    state.Citations,
	}
	if resp.Citations == nil {
		resp.Citations = []domain.Citation{}
	}
	if trace {
		resp.Trace = state.Trace
	}
	return resp
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question, err := decodeQuestion(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.ports.Ask.Ask(r.Context(), question)
	if err != nil {
		logger.Error("http: ask %s: %v", r.Header.Get(RequestIDHeader), err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newAskResponse(state, wantTrace(r)))
}

// handleAskStream answers over server-sent events. Each fragment is a
// "fragment" event whose data is a JSON string; the final "done" event
// carries the full response. A fatal error after headers were written is
// reported as an "error" event.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	question, err := decodeQuestion(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	state, err := s.ports.Ask.AskStream(ctx, question, func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEvent(w, "fragment", fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("http: ask stream %s: %v", r.Header.Get(RequestIDHeader), err)
			_ = writeEvent(w, "error", errorResponse{Error: err.Error()})
			flusher.Flush()
		}
		return
	}

	_ = writeEvent(w, "done", newAskResponse(state, wantTrace(r)))
	flusher.Flush()
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	opts := domain.SearchOptions{FanOut: s.cfg.FanOut, TopN: s.cfg.TopN}
	var err error
	if opts.FanOut, err = intParam(query.Get("k"), opts.FanOut); err != nil {
		writeError(w, http.StatusBadRequest, "invalid k: "+err.Error())
		return
	}
	if opts.TopN, err = intParam(query.Get("n"), opts.TopN); err != nil {
		writeError(w, http.StatusBadRequest, "invalid n: "+err.Error())
		return
	}
	if opts.Filter, err = parseFilters(query["filter"]); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.ports.Search.Search(r.Context(), q, opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ports.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ports.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, error) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		return "", errors.New("invalid request body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", errors.New("question is required")
	}
	return question, nil
}

func wantTrace(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("trace"))
	return v
}

// intParam parses a positive count, capped at maxSearchCount.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return min(n, maxSearchCount), nil
}

// parseFilters parses repeated key=value pairs into an exact-match filter.
func parseFilters(values []string) (domain.MetadataFilter, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(domain.MetadataFilter, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", v)
		}
		filter[key] = strings.TrimSpace(value)
	}
	return filter, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
