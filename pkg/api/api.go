// Package api exposes the agent loop over HTTP: create a thread and run it,
// fetch a transcript, answer a clarification request.
package api

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/loop"
	"github.com/dimdasci/agent-primitives/pkg/store"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Server serves the thread endpoints.
type Server struct {
	store store.ThreadStore
	loop  *loop.Loop
}

// NewServer builds a server over a thread store and a configured loop.
func NewServer(st store.ThreadStore, lp *loop.Loop) *Server {
	return &Server{store: st, loop: lp}
}

// Handler returns the routed handler wrapped with OTel HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /threads", s.handleCreate)
	mux.HandleFunc("GET /threads/{id}", s.handleGet)
	mux.HandleFunc("POST /threads/{id}/input", s.handleInput)
	return otelhttp.NewHandler(mux, "api")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Query string `json:"query"`
}

type runResponse struct {
	Thread     *thread.Thread `json:"thread"`
	Status     loop.Status    `json:"status"`
	Iterations int            `json:"iterations"`
}

// handleCreate starts a thread from a user query, runs the loop to rest, and
// returns the transcript.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("malformed_body", err.Error(), nil))
		return
	}
	if req.Query == "" {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_query", "query is required", nil))
		return
	}

	th, err := s.store.Create(r.Context(), thread.UserInput(req.Query))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	s.runAndRespond(w, r, th)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	th, ok, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if !ok {
		errmodel.WriteHTTP(w, r, errmodel.Validation("not_found",
			"no thread "+r.PathValue("id"), nil))
		return
	}
	writeJSON(w, http.StatusOK, th)
}

type inputRequest struct {
	Input string `json:"input"`
}

// handleInput appends a human response to an existing thread and resumes the
// loop, the round trip behind a clarification request.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("malformed_body", err.Error(), nil))
		return
	}
	if req.Input == "" {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_input", "input is required", nil))
		return
	}

	th, ok, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if !ok {
		errmodel.WriteHTTP(w, r, errmodel.Validation("not_found",
			"no thread "+r.PathValue("id"), nil))
		return
	}
	th.Append(thread.HumanResponse(req.Input))
	s.runAndRespond(w, r, th)
}

func (s *Server) runAndRespond(w http.ResponseWriter, r *http.Request, th *thread.Thread) {
	out := s.loop.Run(r.Context(), th)
	if err := s.store.Save(r.Context(), th); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if out.Status == loop.StatusError {
		errmodel.WriteHTTP(w, r, out.Err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		Thread:     out.Thread,
		Status:     out.Status,
		Iterations: out.Iterations,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
