package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/web/notify"
	"golang.org/x/net/websocket"
)

// Stream is a client connection to the notification channel.
type Stream struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

// Dial opens the notification channel at notifyURL (http or ws scheme) as actor.
func Dial(notifyURL string, actor models.ActorContext, logger *slog.Logger) (*Stream, error) {
	u, err := url.Parse(notifyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid notification url: %w", err)
	}

	origin := *u
	origin.Path, origin.RawQuery = "", ""

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	}

	params := u.Query()
	params.Set("actor_id", actor.ID)
	params.Set("actor_name", actor.Name)
	params.Set("actor_role", string(actor.GlobalRole))
	params.Set("actor_groups", formatGroups(actor.GroupRoles))
	u.RawQuery = params.Encode()

	conn, err := websocket.Dial(u.String(), "", origin.String())
	if err != nil {
		return nil, fmt.Errorf("failed to dial notification channel: %w", err)
	}

	return &Stream{
		conn:   conn,
		enc:    json.NewEncoder(conn),
		logger: logger.With("module", "notification_stream", "actor_id", actor.ID),
	}, nil
}

// Subscribe asks the server for topic. The outcome arrives as an ack or error frame.
func (s *Stream) Subscribe(topic models.Topic) error {
	return s.write(notify.ClientFrame{Type: notify.FrameSubscribe, Topic: topic, RequestID: string(topic)})
}

// Unsubscribe drops topic.
func (s *Stream) Unsubscribe(topic models.Topic) error {
	return s.write(notify.ClientFrame{Type: notify.FrameUnsubscribe, Topic: topic, RequestID: string(topic)})
}

func (s *Stream) write(frame notify.ClientFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enc.Encode(frame)
}

// Listen reads frames until the connection ends or ctx is done and returns
// the notifications. The channel is closed when reading stops.
func (s *Stream) Listen(ctx context.Context) <-chan models.NotificationMessage {
	out := make(chan models.NotificationMessage)

	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	go func() {
		defer close(out)

		decoder := json.NewDecoder(s.conn)

		for {
			var frame notify.ServerFrame
			if err := decoder.Decode(&frame); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.logger.WarnContext(ctx, "Notification channel closed", "error", err)
				}

				return
			}

			switch frame.Type {
			case notify.FrameNotification:
				if frame.Message == nil {
					continue
				}

				select {
				case out <- *frame.Message:
				case <-ctx.Done():
					return
				}
			case notify.FrameError:
				if frame.Error == nil {
					continue
				}

				s.logger.WarnContext(ctx, "Notification channel rejected a frame",
					"request_id", frame.RequestID,
					"code", frame.Error.Code,
					"message", frame.Error.Message)
			default:
				s.logger.DebugContext(ctx, "Notification channel ack", "topic", frame.Topic)
			}
		}
	}()

	return out
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
