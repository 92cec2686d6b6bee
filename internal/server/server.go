// Package server exposes analyses over HTTP. Analyses run in the background;
// clients poll their progress by id.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/repoinsight/internal/store"
	"github.com/seanblong/repoinsight/pkg/models"
)

// DefaultAnalysisTimeout bounds one background analysis.
const DefaultAnalysisTimeout = 30 * time.Minute

// Analyzer runs one analysis to completion.
type Analyzer interface {
	Analyze(ctx context.Context, analysisID string, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type Server struct {
	Analyzer Analyzer
	Store    store.StatusStore
	NewID    func() string
	Timeout  time.Duration

	wg sync.WaitGroup
}

// New returns a Server with uuid analysis ids and DefaultAnalysisTimeout.
func New(a Analyzer, st store.StatusStore) *Server {
	return &Server{
		Analyzer: a,
		Store:    st,
		NewID:    uuid.NewString,
		Timeout:  DefaultAnalysisTimeout,
	}
}

// AcceptedResponse is returned when an analysis is queued.
type AcceptedResponse struct {
	AnalysisID string `json:"analysisId"`
}

// StatusResponse reports the progress of an analysis and, once it is DONE,
// its result.
type StatusResponse struct {
	Progress models.Progress        `json:"progress"`
	Result   *models.AnalysisResult `json:"result,omitempty"`
}

// Routes registers the API endpoints on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("POST /analysis/github", s.handleGithub)
	mux.HandleFunc("POST /analysis/gitlab", s.handleGitlab)
	mux.HandleFunc("GET /analysis/{id}", s.handleStatus)
	return mux
}

// Handler wraps Routes with request logging.
func (s *Server) Handler(logger zerolog.Logger) http.Handler {
	return hlog.NewHandler(logger)(
		hlog.RequestIDHandler("req_id", "Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
			})(s.Routes()),
		),
	)
}

// Wait blocks until every background analysis has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleGithub(w http.ResponseWriter, r *http.Request) {
	var req models.GithubRequest
	if err := decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RepoPath) == "" || strings.TrimSpace(req.UserName) == "" {
		http.Error(w, "repoPath and userName are required", http.StatusBadRequest)
		return
	}
	s.start(w, r, req)
}

func (s *Server) handleGitlab(w http.ResponseWriter, r *http.Request) {
	var req models.GitlabRequest
	if err := decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.BaseURL) == "" || strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.UserName) == "" {
		http.Error(w, "baseUrl, projectId and userName are required", http.StatusBadRequest)
		return
	}
	s.start(w, r, req)
}

// start records the analysis as PENDING, runs it in the background and
// answers 202 with its id.
func (s *Server) start(w http.ResponseWriter, r *http.Request, req models.AnalysisRequest) {
	id := s.NewID()
	logger := hlog.FromRequest(r).With().Str("analysis_id", id).Logger()

	pending := models.Progress{
		AnalysisID: id,
		Status:     models.StatusPending,
		Code:       models.StatusPending.Code(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.Store.SetProgress(r.Context(), pending); err != nil {
		logger.Error().Err(err).Msg("failed to record analysis")
		http.Error(w, "failed to record analysis", http.StatusInternalServerError)
		return
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if _, err := s.Analyzer.Analyze(ctx, id, req); err != nil {
			logger.Warn().Err(err).Msg("analysis ended with error")
		}
	}()

	logger.Info().Str("platform", req.Platform()).Msg("analysis accepted")
	writeJSON(w, http.StatusAccepted, AcceptedResponse{AnalysisID: id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, ok, err := s.Store.GetProgress(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	resp := StatusResponse{Progress: p}
	if p.Status == models.StatusDone {
		res, found, err := s.Store.GetResult(ctx, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if found {
			resp.Result = res
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
