package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/agentpulse/internal/config"
)

// MaxEventBytes caps an ingested event body.
const MaxEventBytes = 1 << 20

// defaultListLimit is used when GET /api/events has no limit.
const defaultListLimit = 100

// Server is the ingestion HTTP service.
type Server struct {
	store  *Store
	sse    *Broadcaster
	router chi.Router
}

// New creates a Server keeping capacity events in memory.
func New(capacity int) *Server {
	s := &Server{
		store: NewStore(capacity),
		sse:   NewBroadcaster(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(TagRequest)
	r.Use(AccessLog)

	r.Get("/api/health", s.handleHealth)
	r.Route(config.EventsPath, func(r chi.Router) {
		r.With(LimitEventBody(MaxEventBytes), RequireJSONContentType).Post("/", s.handleIngest)
		r.Get("/", s.handleList)
		r.Get("/stream", s.sse.HandleSSE)
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the in-memory event store.
func (s *Server) Store() *Store { return s.store }

// Broadcaster returns the SSE broadcaster.
func (s *Server) Broadcaster() *Broadcaster { return s.sse }

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// SSE handlers only return once their client is closed
	srv.RegisterOnShutdown(s.sse.CloseAll)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Collector listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"events":  s.store.Len(),
		"clients": s.sse.ClientCount(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		http.Error(w, "body must be a JSON object", http.StatusBadRequest)
		return
	}
	eventType, _ := envelope["type"].(string)
	if eventType == "" {
		http.Error(w, "event type is required", http.StatusBadRequest)
		return
	}

	rec := s.store.Add(eventType, json.RawMessage(body))
	s.sse.Broadcast(rec)

	log.Info().
		Uint64("seq", rec.Seq).
		Str("type", eventType).
		Interface("id", envelope["id"]).
		Msg("Event received")

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "seq": rec.Seq})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.store.Recent(limit))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
