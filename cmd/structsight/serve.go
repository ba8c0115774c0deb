package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/layout"
)

const maxRequestBody = 4 << 20

// router builds the HTTP API.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", a.handleHealth)
	r.Get("/profiles", a.handleProfiles)
	r.Post("/analyze", a.handleAnalyze)
	r.Delete("/cache", a.handleInvalidate)
	return r
}

// serve runs the HTTP API until ctx is canceled.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening", zap.String("addr", a.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache": map[string]any{
			"cxx": a.cxx.Stats(),
			"wit": a.wit.Stats(),
		},
	})
}

func (a *app) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profileList())
}

// handleAnalyze runs an analysis request. Analysis failures are reported
// in the result envelope with status 200; only malformed requests get an
// error status. Pass format=wit to read the source as WIT JSON.
func (a *app) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzer.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, analyzer.Result{
			ErrorMessage: "invalid request: " + err.Error(),
			Layouts:      []*layout.TypeLayout{},
		})
		return
	}
	if req.Architecture == "" {
		req.Architecture = a.cfg.Arch
	}
	if req.Compiler == "" {
		req.Compiler = a.cfg.Compiler
	}

	res := a.runner(req.FilePath, r.URL.Query().Get("format") == "wit").Analyze(r.Context(), req)
	writeJSON(w, http.StatusOK, res)
}

// handleInvalidate drops cached results for a document after its text
// changed.
func (a *app) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("document")
	if doc == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document is required"})
		return
	}
	n := a.cxx.InvalidateDocument(doc) + a.wit.InvalidateDocument(doc)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
