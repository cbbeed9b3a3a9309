package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/generation"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/questions"
	"github.com/jingkaihe/skillforge/pkg/sessions"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/version"
	"github.com/jingkaihe/skillforge/pkg/wire"
)

// pingInterval keeps SSE connections alive through idle proxies.
const pingInterval = 10 * time.Second

// handleHealth handles GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, map[string]string{
		"status":  "ok",
		"version": version.Get().Version,
	})
}

// QuestionsRequest is the body of POST /api/v1/questions.
type QuestionsRequest struct {
	Description string `json:"description"`
	Complexity  string `json:"complexity,omitempty"`
	TargetAgent string `json:"targetAgent,omitempty"`
}

// handleQuestions handles POST /api/v1/questions.
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := s.validatePrompt(req.Description, req.TargetAgent, req.Complexity); msg != "" {
		s.writeErrorResponse(w, http.StatusBadRequest, msg, nil)
		return
	}

	plan, err := questions.NewGenerator(s.questionHandle).Generate(ctx, skill.CapabilityRequest{
		Description: req.Description,
		Complexity:  skill.Complexity(req.Complexity),
		TargetAgent: req.TargetAgent,
	})
	if err != nil {
		if errors.Is(err, questions.ErrContractViolation) {
			s.writeErrorResponse(w, http.StatusBadGateway, "model returned an invalid question plan", err)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to generate questions", err)
		return
	}

	s.writeJSONResponse(w, plan)
}

// GenerateRequest is the body of POST /api/v1/generate. An initial turn
// carries the description (plus optional answers and config values); a
// refinement turn carries feedback, the prior transcript, and the last
// settled artifact.
type GenerateRequest struct {
	Description  string                   `json:"description,omitempty"`
	Complexity   string                   `json:"complexity,omitempty"`
	TargetAgent  string                   `json:"targetAgent,omitempty"`
	Answers      []skill.StructuredAnswer `json:"questionAnswers,omitempty"`
	ConfigValues map[string]string        `json:"configValues,omitempty"`

	Feedback    string                 `json:"feedback,omitempty"`
	Messages    []skill.GenerationTurn `json:"messages,omitempty"`
	CurrentSpec string                 `json:"currentSpec,omitempty"`
}

func (r *GenerateRequest) refinement() bool {
	return r.Feedback != ""
}

// handleGenerate handles POST /api/v1/generate as an SSE stream with
// token, delimiter, ping, done and error events.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	prompt := req.Description
	if req.refinement() {
		prompt = req.Feedback
		if req.CurrentSpec == "" || len(req.Messages) == 0 {
			s.writeErrorResponse(w, http.StatusBadRequest, "refinement requires messages and currentSpec", nil)
			return
		}
	}
	if msg := s.validatePrompt(prompt, req.TargetAgent, req.Complexity); msg != "" {
		s.writeErrorResponse(w, http.StatusBadRequest, msg, nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErrorResponse(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tokens := make(chan string, 256)
	engine := generation.NewEngine(s.genHandle,
		generation.WithMaxTokens(s.config.MaxTokens),
		generation.WithObserver(func(token string) {
			select {
			case tokens <- token:
			case <-ctx.Done():
			}
		}),
	)

	capability := skill.CapabilityRequest{
		Description: req.Description,
		Complexity:  skill.Complexity(req.Complexity),
		TargetAgent: req.TargetAgent,
	}

	type turnResult struct {
		parsed skill.ParsedResponse
		err    error
	}
	done := make(chan turnResult, 1)
	go func() {
		var result turnResult
		if req.refinement() {
			if err := engine.Restore(capability, req.ConfigValues, req.Messages, req.CurrentSpec); err != nil {
				done <- turnResult{err: err}
				return
			}
			result.parsed, result.err = engine.Refine(ctx, req.Feedback)
		} else {
			result.parsed, result.err = engine.StartFromAnswers(ctx, capability, req.Answers, req.ConfigValues)
		}
		done <- result
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var raw string
	delimiterSent := false
	emitToken := func(token string) {
		raw += token
		writeSSE(w, flusher, "token", map[string]string{"text": token})
		if !delimiterSent && strings.Contains(raw, wire.Delimiter) {
			delimiterSent = true
			writeSSE(w, flusher, "delimiter", map[string]string{})
		}
	}

	for {
		select {
		case token := <-tokens:
			emitToken(token)
		case <-ping.C:
			writeSSE(w, flusher, "ping", map[string]string{})
		case result := <-done:
			// Drain tokens that raced with completion.
			drained := false
			for !drained {
				select {
				case token := <-tokens:
					emitToken(token)
				default:
					drained = true
				}
			}
			if result.err != nil {
				logger.G(ctx).WithError(result.err).Error("generation turn failed")
				writeSSE(w, flusher, "error", map[string]string{"message": "generation failed"})
				return
			}
			writeSSE(w, flusher, "done", map[string]any{
				"message":  result.parsed.Message,
				"files":    result.parsed.Files,
				"messages": engine.Transcript(),
				"spec":     engine.Artifact(),
			})
			return
		case <-ctx.Done():
			engine.Cancel()
			return
		}
	}
}

// writeSSE writes one server-sent event. JSON encoding keeps the data on a
// single line regardless of token content.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, encoded)
	flusher.Flush()
}

// validatePrompt checks user-supplied text, target agent and complexity,
// returning an error message or "".
func (s *Server) validatePrompt(text, targetAgent, complexity string) string {
	if text == "" {
		return "description is required"
	}
	if len(text) > s.config.MaxPromptLen {
		return fmt.Sprintf("prompt exceeds maximum length of %d", s.config.MaxPromptLen)
	}
	if targetAgent != "" && !skill.KnownTargetAgents[targetAgent] {
		return fmt.Sprintf("unknown target agent: %s", targetAgent)
	}
	if complexity != "" && !skill.Complexity(complexity).Valid() {
		return fmt.Sprintf("unknown complexity: %s", complexity)
	}
	return ""
}

// handleListSessions handles GET /api/v1/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessionSvc.ListSessions(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"sessions": list})
}

// SessionWriteRequest is the body of POST /api/v1/sessions and
// PUT /api/v1/sessions/{id}. Clients persist a settled generation by posting
// the spec and transcript returned in the stream's done event.
type SessionWriteRequest struct {
	Description string                 `json:"description"`
	Spec        string                 `json:"spec"`
	Messages    []skill.GenerationTurn `json:"messages,omitempty"`
}

// handleCreateSession handles POST /api/v1/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Description == "" || req.Spec == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "description and spec are required", nil)
		return
	}
	if len(req.Description) > s.config.MaxPromptLen {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("description exceeds maximum length of %d", s.config.MaxPromptLen), nil)
		return
	}

	session, err := s.sessionSvc.SaveResult(r.Context(), req.Description, req.Spec, req.Messages)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to save session", err)
		return
	}
	s.writeJSONResponse(w, session)
}

// handleUpdateSession handles PUT /api/v1/sessions/{id}.
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SessionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Spec == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "spec is required", nil)
		return
	}

	session, err := s.sessionSvc.UpdateResult(r.Context(), id, req.Spec, req.Messages)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "session not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to update session", err)
		return
	}
	s.writeJSONResponse(w, session)
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session, err := s.sessionSvc.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "session not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to get session", err)
		return
	}
	s.writeJSONResponse(w, session)
}

// handleDeleteSession handles DELETE /api/v1/sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.sessionSvc.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "session not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to delete session", err)
		return
	}
	s.writeJSONResponse(w, map[string]any{"success": true})
}
