package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/jobs"
)

// startHTTPServer mounts the API-facing mux and serves it on cfg.HTTPAddr
// until ctx is canceled, then shuts it down gracefully.
func (p *platform) startHTTPServer(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	srv := &http.Server{
		Addr:              p.httpAddr,
		Handler:           p.routes(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			log.Printf(ctx, "http server listening on %q", p.httpAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- err
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf(ctx, "http server shutdown error: %v", err)
		}
	}()
}

// startSubscriber drains the realtime bus into the connection manager until
// ctx is canceled.
func (p *platform) startSubscriber(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			errc <- err
		}
	}()
}

// startWorkers drains one job queue per registered agent, cfg.WorkerConcurrency
// goroutines deep per queue, until ctx is canceled (spec §5 "Scheduling":
// parallelism is achieved by running multiple single-threaded workers).
func (p *platform) startWorkers(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	concurrency := p.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for _, manifest := range p.registry.List() {
		queue := jobs.QueueName(manifest.Slug)
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(queue string) {
				defer wg.Done()
				if err := p.worker.Run(ctx, queue); err != nil && ctx.Err() == nil {
					errc <- err
				}
			}(queue)
		}
	}
}

// routes builds the HTTP mux. Kept deliberately small: a synchronous turn
// endpoint, an asynchronous job submission + polling pair, agent listing,
// agent package export/import, session close, and a health check. A production deployment fronts this with its own
// authentication/routing layer; platformd's own surface trusts its caller.
func (p *platform) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", p.handleHealthz)
	mux.HandleFunc("GET /v1/agents", p.handleListAgents)
	mux.HandleFunc("POST /v1/agents/{slug}/turns", p.handleSyncTurn)
	mux.HandleFunc("POST /v1/agents/{slug}/jobs", p.handleSubmitJob)
	mux.HandleFunc("GET /v1/jobs/{id}", p.handleGetJob)
	mux.HandleFunc("POST /v1/agents/{slug}/export", p.handleExportAgent)
	mux.HandleFunc("POST /v1/agents/import", p.handleImportAgent)
	mux.HandleFunc("POST /v1/agents/{slug}/sessions/{id}/close", p.handleCloseSession)
	return mux
}

// closeSessionRequest carries the identity fields CloseSession needs to
// rebuild the same per-turn context an OnSessionEnd hook would have seen
// mid-conversation.
type closeSessionRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Lang        string `json:"lang,omitempty"`
}

func (p *platform) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	sessionID := r.PathValue("id")

	var req closeSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if err := p.engine.CloseSession(r.Context(), slug, req.UserID, sessionID, req.WorkspaceID, req.Lang); err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *platform) handleExportAgent(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	archive, result, err := p.exporter.Export(r.Context(), slug)
	if err != nil {
		if result != nil {
			writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", slug+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (p *platform) handleImportAgent(w http.ResponseWriter, r *http.Request) {
	archive, err := readAll(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	overwrite := r.URL.Query().Get("overwrite") == "true"
	slug, result, err := p.importer.Import(r.Context(), archive, overwrite)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "validation": result})
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func (p *platform) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (p *platform) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.registry.List())
}

// turnRequest is the wire shape of both the synchronous and asynchronous
// turn endpoints: a single user message plus the identity/session fields
// the engine needs to build a per-turn context.
type turnRequest struct {
	UserID      string               `json:"user_id"`
	SessionID   string               `json:"session_id,omitempty"`
	WorkspaceID string               `json:"workspace_id,omitempty"`
	Lang        string               `json:"lang,omitempty"`
	Message     apitypes.UserMessage `json:"message"`
	Stream      bool                 `json:"stream,omitempty"`
}

func (p *platform) handleSyncTurn(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, sess, err := p.engine.Execute(r.Context(), slug, req.UserID, req.SessionID, req.WorkspaceID, req.Lang, req.Message)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.SessionID,
		"success":    result.Success,
		"response":   result.Response,
		"error_code": result.ErrorCode,
		"error":      result.ErrorMessage,
	})
}

func (p *platform) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	job, err := p.worker.Submit(r.Context(), jobs.Task{
		AgentSlug:   slug,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		WorkspaceID: req.WorkspaceID,
		Lang:        req.Lang,
		Message:     req.Message,
		Stream:      req.Stream,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.UserID != "" {
		p.manager.BindJob(job.JobID, req.UserID)
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (p *platform) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok, err := p.jobStore.Get(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
