// Package notify serves the notification channel: one websocket per client,
// over which the client manages its topic subscriptions and receives messages.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/subscription"
	"github.com/dukex/clubflow/pkg/web"
	"golang.org/x/net/websocket"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
	writeTimeout      = 10 * time.Second

	maxFrameBytes     = 4 << 10
	maxDecodeFailures = 5
)

type actorKey struct{}

// Server accepts notification connections and binds each one to a subscriber.
type Server struct {
	server   *http.Server
	port     int
	registry *subscription.Registry
	logger   *slog.Logger
	mu       sync.Mutex
	started  bool
}

func NewServer(port int, registry *subscription.Registry, logger *slog.Logger) *Server {
	return &Server{
		port:     port,
		registry: registry,
		logger:   logger.With("module", "notify_server", "port", port),
	}
}

// Handler returns the routes of the notification channel.
func (s *Server) Handler() http.Handler {
	ws := websocket.Server{
		Handler: s.handleConn,
		// Any origin is accepted.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

			return
		}

		query := r.URL.Query()

		actor, err := web.ParseActor(query.Get("actor_id"), query.Get("actor_name"), query.Get("actor_role"), query.Get("actor_groups"))
		if err != nil {
			status := http.StatusBadRequest
			if services.IsUnauthenticated(err) {
				status = http.StatusUnauthorized
			}

			s.logger.InfoContext(r.Context(), "Rejected notification connection", "remote", r.RemoteAddr, "error", err)
			http.Error(w, err.Error(), status)

			return
		}

		ws.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})

	return mux
}

// Start begins serving on the configured port until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.started = true
	s.logger.InfoContext(ctx, "Starting notification server", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Notification server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		if err := s.Stop(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to stop notification server", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping notification server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.started = false

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":      "healthy",
		"subscribers": s.registry.Len(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Error("Error encoding health response", "error", err)
	}
}

// peer serialises frame writes on one connection.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
	enc  *json.Encoder
}

func (p *peer) write(frame ServerFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return p.enc.Encode(frame)
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	actor, _ := ctx.Value(actorKey{}).(models.ActorContext)

	subscriber := s.registry.Register(actor)
	out := &peer{conn: conn, enc: json.NewEncoder(conn)}
	logger := s.logger.With("subscriber_id", subscriber.ID, "actor_id", actor.ID)

	logger.InfoContext(ctx, "Notification client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.forward(subscriber, out, logger)
	}()

	defer func() {
		s.registry.Remove(subscriber.ID)
		<-writerDone
		logger.InfoContext(ctx, "Notification client disconnected")
	}()

	conn.MaxPayloadBytes = maxFrameBytes
	decoder := json.NewDecoder(conn)
	failures := 0

	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			var syntaxErr *json.SyntaxError
			if !errors.As(err, &syntaxErr) || failures >= maxDecodeFailures {
				return
			}

			failures++
			_ = out.write(errorFrame("", CodeInvalidArgument, "invalid frame payload"))

			// The decoder cannot resync after a syntax error.
			decoder = json.NewDecoder(conn)

			continue
		}

		failures = 0

		frame, err := parseClientFrame(raw)
		if err != nil {
			_ = out.write(errorFrame("", CodeInvalidArgument, err.Error()))

			continue
		}

		_ = out.write(s.apply(subscriber, frame, logger))
	}
}

// forward drains the subscriber outbox until Remove closes it.
func (s *Server) forward(subscriber *subscription.Subscriber, out *peer, logger *slog.Logger) {
	for msg := range subscriber.Outbox() {
		if err := out.write(ServerFrame{Type: FrameNotification, Topic: msg.Topic, Message: &msg}); err != nil {
			logger.Warn("Failed to write notification", "topic", msg.Topic, "action", msg.Action, "error", err)
		}
	}
}

func (s *Server) apply(subscriber *subscription.Subscriber, frame ClientFrame, logger *slog.Logger) ServerFrame {
	switch frame.Type {
	case FrameSubscribe:
		topic, err := s.registry.Subscribe(subscriber.ID, frame.Topic)
		if err != nil {
			logger.Info("Subscription rejected", "topic", frame.Topic, "error", err)

			return errorFrame(frame.RequestID, codeOf(err), err.Error())
		}

		logger.Debug("Subscribed", "topic", topic)

		return ServerFrame{Type: FrameAck, RequestID: frame.RequestID, Topic: topic}
	default:
		s.registry.Unsubscribe(subscriber.ID, frame.Topic)

		return ServerFrame{Type: FrameAck, RequestID: frame.RequestID, Topic: frame.Topic}
	}
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, subscription.ErrTopicForbidden):
		return CodeForbidden
	case errors.Is(err, models.ErrInvalidTopic):
		return CodeInvalidArgument
	default:
		return CodeUnavailable
	}
}

func errorFrame(requestID, code, message string) ServerFrame {
	return ServerFrame{
		Type:      FrameError,
		RequestID: requestID,
		Error:     &FrameErrorBody{Code: code, Message: message},
	}
}
