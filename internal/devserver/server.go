package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"speech-to-tweet/internal/domain"
)

const defaultMaxUploadBytes = 25 << 20

// Upload is one received audio file.
type Upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Processor turns an upload into the result a completed job reports.
type Processor interface {
	Process(ctx context.Context, u Upload) (domain.JobState, error)
}

type ProcessorFunc func(ctx context.Context, u Upload) (domain.JobState, error)

func (f ProcessorFunc) Process(ctx context.Context, u Upload) (domain.JobState, error) {
	return f(ctx, u)
}

type job struct {
	state     domain.JobState
	updatedAt time.Time
}

// Server is a local stand-in for the upload and status backend. Jobs live in
// memory only.
type Server struct {
	logger         *slog.Logger
	router         *chi.Mux
	processor      Processor
	delay          time.Duration
	maxUploadBytes int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*job
}

type Option func(*Server)

func WithProcessor(p Processor) Option {
	return func(s *Server) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithDelay holds each job in "processing" for d before it is processed.
func WithDelay(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:         logger,
		router:         chi.NewRouter(),
		processor:      EchoProcessor{},
		maxUploadBytes: defaultMaxUploadBytes,
		ctx:            ctx,
		cancel:         cancel,
		jobs:           make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

// Close abandons pending jobs and waits for their goroutines.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Post("/api/process_audio", s.upload)
	s.router.Get("/api/status", s.status)
	s.router.Get("/healthz", s.health)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.logger.Warn("invalid multipart upload", "err", err)
		respondError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No audio file found")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read upload", "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	u := Upload{Filename: header.Filename, MIMEType: header.Header.Get("Content-Type"), Data: data}
	jobID := uuid.NewString()

	s.mu.Lock()
	s.jobs[jobID] = &job{state: domain.JobState{Status: domain.StatusProcessing}, updatedAt: time.Now()}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(jobID, u)

	s.logger.Info("upload accepted", "job_id", jobID, "file", u.Filename, "bytes", len(data))
	respondJSON(w, http.StatusOK, map[string]string{"jobId": jobID})
}

func (s *Server) run(jobID string, u Upload) {
	defer s.wg.Done()

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	state, err := s.processor.Process(s.ctx, u)
	if err != nil {
		s.logger.Error("job failed", "job_id", jobID, "err", err)
		state = domain.JobState{Status: domain.StatusFailed, Error: err.Error()}
	} else {
		state.Status = domain.StatusCompleted
		s.logger.Info("job completed", "job_id", jobID, "items", len(state.Items))
	}

	s.mu.Lock()
	if j, ok := s.jobs[jobID]; ok {
		j.state = state
		j.updatedAt = time.Now()
	}
	s.mu.Unlock()
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("id"))
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "No job ID provided")
		return
	}

	s.mu.RLock()
	j, ok := s.jobs[jobID]
	var state domain.JobState
	if ok {
		state = j.state
	}
	s.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// StartCleanupLoop drops finished jobs not updated within ttl.
func (s *Server) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup(ttl)
			}
		}
	}()
}

func (s *Server) cleanup(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	removed := 0

	s.mu.Lock()
	for id, j := range s.jobs {
		if j.state.Status.Terminal() && j.updatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("cleanup completed", "removed_jobs", removed)
	}
	return removed
}

// EchoProcessor completes every job with one item describing the upload.
type EchoProcessor struct{}

func (EchoProcessor) Process(_ context.Context, u Upload) (domain.JobState, error) {
	if len(u.Data) == 0 {
		return domain.JobState{}, errors.New("uploaded audio is empty")
	}
	return domain.JobState{
		Items: []domain.ResultItem{{
			ID:   uuid.NewString(),
			Text: fmt.Sprintf("Received %s (%d bytes)", u.Filename, len(u.Data)),
		}},
	}, nil
}

// FailingProcessor fails every job with Message.
type FailingProcessor struct {
	Message string
}

func (p FailingProcessor) Process(context.Context, Upload) (domain.JobState, error) {
	return domain.JobState{}, errors.New(p.Message)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
