package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SinkMetrics receives delivery observations from sinks that hold a
// connection.
type SinkMetrics interface {
	NATSSetConnected(connected bool)
	PublishObserve(d time.Duration)
}

// StatusMessage is the JSON document published by NATSSink.
type StatusMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// NATSSink delivers each status to a single NATS subject. The connection
// is opened on the first Post, so a sink can be built while NATS is down.
type NATSSink struct {
	url     string
	subject string
	metrics SinkMetrics

	mu sync.Mutex
	nc *nats.Conn
}

func NewNATSSink(url, subject string, m SinkMetrics) *NATSSink {
	return &NATSSink{url: url, subject: subjectName(subject), metrics: m}
}

func (s *NATSSink) conn() (*nats.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil {
		return s.nc, nil
	}
	m := s.metrics
	nc, err := nats.Connect(s.url,
		nats.Name("ace-status"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	s.nc = nc
	return nc, nil
}

func (s *NATSSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
		s.nc = nil
	}
}

// Post publishes the message and flushes so delivery errors surface here.
// The message id doubles as the Nats-Msg-Id header for JetStream dedupe.
func (s *NATSSink) Post(ctx context.Context, message string) error {
	nc, err := s.conn()
	if err != nil {
		return &NotificationError{Sink: "nats", Err: fmt.Errorf("connect: %w", err)}
	}
	msg := StatusMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Status:    message,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return &NotificationError{Sink: "nats", Err: err}
	}
	out := nats.NewMsg(s.subject)
	out.Data = b
	out.Header.Set(nats.MsgIdHdr, msg.ID)

	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	start := time.Now()
	err = nc.PublishMsg(out)
	if err == nil {
		err = nc.FlushWithContext(ctx)
	}
	if s.metrics != nil {
		s.metrics.PublishObserve(time.Since(start))
	}
	if err != nil {
		return &NotificationError{Sink: "nats", Err: fmt.Errorf("publish %s: %w", s.subject, err)}
	}
	log.Printf("nats publish subject=%s id=%s", s.subject, msg.ID)
	return nil
}

// subjectName sanitises a configured subject. Dots separate tokens and are
// kept; wildcards and whitespace are not valid in a publish subject.
func subjectName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), ".")
	repl := strings.NewReplacer(" ", "_", ">", "_", "*", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "ace.status"
	}
	return s
}
