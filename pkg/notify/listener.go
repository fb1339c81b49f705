// Package notify fans out Postgres LISTEN/NOTIFY events to in-process
// subscribers, so that API-layer long-poll/SSE consumers learn about
// workflow-state and execution changes without repolling the database
// (spec.md §6, "the external surface observes state changes promptly").
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/lib/pq"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// Channel names the Postgres NOTIFY channels this package fans out. No
// migration in internal/database/migrations installs a trigger that
// notifies on them; a NOTIFY on these names must come from elsewhere.
type Channel string

const (
	ChannelExecutionEvent Channel = "odb_execution_event"
	ChannelWorkflowState  Channel = "odb_workflow_state"
)

// Event is the decoded JSON payload of one NOTIFY message.
type Event struct {
	Channel Channel
	Payload json.RawMessage
}

// Listener owns a single *pq.Listener connection and distributes its
// notifications to every subscriber registered for that channel.
type Listener struct {
	pqListener *pq.Listener
	logger     logr.Logger

	mu          sync.Mutex
	subscribers map[Channel][]chan<- Event
}

// NewListener dials Postgres via lib/pq's connection-pooling listener,
// reconnecting automatically on transient failures (the reconnect
// backoff pq.NewListener applies internally).
func NewListener(dsn string, logger logr.Logger) *Listener {
	l := &Listener{logger: logger, subscribers: make(map[Channel][]chan<- Event)}
	l.pqListener = pq.NewListener(dsn, 10*time.Second, time.Minute, l.reportProblem)
	return l
}

func (l *Listener) reportProblem(ev pq.ListenerEventType, err error) {
	if err != nil {
		l.logger.Error(err, "postgres listener event", "event", int(ev))
	}
}

// Listen begins LISTENing on channel over the underlying connection. It
// keeps no record of subscribers; call it once per channel.
func (l *Listener) Listen(channel Channel) error {
	if err := l.pqListener.Listen(string(channel)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "listening on "+string(channel))
	}
	return nil
}

// Subscribe registers ch to receive every Event on channel. Delivery
// never blocks: an Event that finds ch full is dropped and logged.
func (l *Listener) Subscribe(channel Channel, ch chan<- Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers[channel] = append(l.subscribers[channel], ch)
}

// Run dispatches incoming notifications until ctx is done. Call it from
// its own goroutine after every channel of interest has been Listen'd.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = l.pqListener.Close()
			return
		case n, ok := <-l.pqListener.Notify:
			if !ok {
				return
			}
			if n == nil {
				continue // reconnected; no missed-notification detail to replay
			}
			l.dispatch(Channel(n.Channel), []byte(n.Extra))
		case <-time.After(90 * time.Second):
			go func() { _ = l.pqListener.Ping() }()
		}
	}
}

func (l *Listener) dispatch(channel Channel, payload json.RawMessage) {
	l.mu.Lock()
	subs := append([]chan<- Event{}, l.subscribers[channel]...)
	l.mu.Unlock()

	event := Event{Channel: channel, Payload: payload}
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			l.logger.Info("dropping notification: subscriber channel full", "channel", string(channel))
		}
	}
}

// Close releases the underlying Postgres connection.
func (l *Listener) Close() error {
	return l.pqListener.Close()
}
