package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldlab/sportsdesk/internal/config"
)

// ConversationLogEvent is one NDJSON line in a session's conversation log.
type ConversationLogEvent struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events. Log must never block the
// request path.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// fileConversationLogger appends events to one NDJSON file per session via
// a bounded queue and a single writer goroutine. Events are dropped, with
// a warning, when the queue is full.
type fileConversationLogger struct {
	dir    string
	queue  chan ConversationLogEvent
	done   chan struct{}
	closed sync.Once
	logger *slog.Logger
}

// NewConversationLogger creates a conversation logger from config. When
// logging is disabled it returns a no-op implementation.
func NewConversationLogger(cfg config.ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &fileConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"session_id", event.SessionID, "event_type", event.EventType)
	}
}

func (l *fileConversationLogger) Close() error {
	l.closed.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log event",
				"session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileConversationLogger) write(event ConversationLogEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := filepath.Join(l.dir, sanitizeSessionID(event.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// sanitizeSessionID keeps session-derived file names inside the log dir.
func sanitizeSessionID(id string) string {
	if id == "" {
		return "unknown"
	}
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
