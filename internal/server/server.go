// Package server hosts voice sessions for browser pages: a websocket per
// page carries recognizer events in and speech, scroll and cart events out,
// next to a small JSON API over the catalog and cart.
package server

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/events"
	"github.com/chriscow/voicemart/pkg/rtc"
	"github.com/chriscow/voicemart/pkg/voice"
)

// MetricsVar is the expvar name the voice counters are published under.
const MetricsVar = "voicemart"

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string

	Catalog catalog.Source
	Cart    cart.Cart
	Phrases *voice.PhraseTable
	Options voice.Options

	// NewTTS builds a server-side synthesizer per session whose audio is
	// streamed to the page. Nil means the page speaks with its own
	// synthesizer.
	NewTTS func() (tts.TTS, error)

	Metrics *voice.Metrics
	Logger  *slog.Logger
}

type Server struct {
	cfg      Config
	router   *chi.Mux
	upgrader websocket.Upgrader
	logger   *slog.Logger
	sessions atomic.Int64
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil || cfg.Cart == nil {
		return nil, errors.New("server: catalog and cart are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = voice.NewMetrics()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if expvar.Get(MetricsVar) == nil {
		expvar.Publish(MetricsVar, cfg.Metrics.Var())
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: cfg.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Load()})
	})
	r.Get("/ws", s.handleSession)
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.getCatalog)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/", s.addToCart)
			r.Delete("/", s.clearCart)
			r.Patch("/{productID}", s.updateCartItem)
			r.Delete("/{productID}", s.removeCartItem)
		})
	})
}

// Handler is the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", slog.Int64("sessions", s.sessions.Load()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// handleSession runs one voice session for the lifetime of the connection.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	bridge := NewBridge(conn, s.logger)
	bus := events.NewBus(s.logger)
	bus.SubscribeAll(bridge.Forward)

	synth := bridge.Synthesizer()
	var sink rtc.Sink
	if s.cfg.NewTTS != nil {
		if synth, err = s.cfg.NewTTS(); err != nil {
			s.logger.Error("speech synthesizer unavailable, using the page", slog.String("error", err.Error()))
			synth = bridge.Synthesizer()
		} else {
			sink = bridge
		}
	}

	assistant, err := voice.New(voice.Config{
		Recognizer: bridge,
		TTS:        synth,
		Sink:       sink,
		Catalog:    s.cfg.Catalog,
		Cart:       s.cfg.Cart,
		Bus:        bus,
		Phrases:    s.cfg.Phrases,
		Options:    s.cfg.Options,
		Metrics:    s.cfg.Metrics,
		Logger:     s.logger,
	})
	if err != nil {
		s.logger.Error("create assistant", slog.String("error", err.Error()))
		_ = conn.WriteJSON(&Command{Type: CommandError, Data: map[string]any{"message": "voice assistant unavailable"}})
		_ = bridge.Close()
		return
	}
	bridge.SetController(assistant)

	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	log := s.logger.With(slog.String("session", assistant.SessionID()))
	log.Info("session connected", slog.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		_ = assistant.Run(ctx)
	}()

	bridge.send(&Command{Type: CommandHello, Data: map[string]any{
		"session": assistant.SessionID(),
		"state":   assistant.State().Event(),
	}})

	if err := bridge.Run(ctx); err != nil {
		log.Debug("connection ended", slog.String("error", err.Error()))
	}
	cancel()
	assistant.Close()
	log.Info("session disconnected")
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}
