package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType names the kind of action an audit entry records.
type AuditEventType string

const (
	AuditEventIngestStart    AuditEventType = "document.ingest.start"
	AuditEventIngestComplete AuditEventType = "document.ingest.complete"
	AuditEventIngestFailed   AuditEventType = "document.ingest.failed"
	AuditEventDocumentDelete AuditEventType = "document.delete"
	AuditEventReindex        AuditEventType = "document.reindex"
	AuditEventSearch         AuditEventType = "search.query"
	AuditEventLLMResponse    AuditEventType = "llm.response"
	AuditEventLLMError       AuditEventType = "llm.error"
	AuditEventFileStore      AuditEventType = "file.store"
	AuditEventWorkflowStart  AuditEventType = "workflow.start"
)

// AuditEvent is one line of the audit trail, written as JSON.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	DocumentID  string         `json:"document_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditConfig controls where the audit trail goes. OutputPath is a file
// path, or "stdout"/"stderr".
type AuditConfig struct {
	Enabled    bool
	OutputPath string
	SessionID  string
	UserID     string
}

func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{Enabled: true, OutputPath: "stdout"}
}

// AuditLogger appends JSON-lines audit events to a single writer. All
// methods are safe for concurrent use; a disabled logger discards events.
type AuditLogger struct {
	mu        sync.Mutex
	enc       *json.Encoder
	closer    io.Closer
	sessionID string
	userID    string
	enabled   bool
}

func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	l := &AuditLogger{
		sessionID: config.SessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}
	if l.sessionID == "" {
		l.sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	switch config.OutputPath {
	case "stdout", "":
		l.enc = json.NewEncoder(os.Stdout)
	case "stderr":
		l.enc = json.NewEncoder(os.Stderr)
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		l.enc = json.NewEncoder(f)
		l.closer = f
	}
	return l, nil
}

// Log writes one event, filling in the timestamp and session identity when
// the caller left them empty.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(event)
}

func (l *AuditLogger) LogIngestStart(ctx context.Context, documentID, transactionID, fileName string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventIngestStart,
		DocumentID: documentID,
		Success:    true,
		Message:    fmt.Sprintf("Ingestion started: %s", fileName),
		Details: map[string]any{
			"transaction_id": transactionID,
			"file_name":      fileName,
		},
	})
}

func (l *AuditLogger) LogIngestComplete(ctx context.Context, documentID, category string, chunkCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventIngestComplete,
		DocumentID: documentID,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Ingestion completed: %d chunks indexed", chunkCount),
		Details: map[string]any{
			"category":    category,
			"chunk_count": chunkCount,
		},
	})
}

func (l *AuditLogger) LogIngestFailed(ctx context.Context, documentID string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventIngestFailed,
		DocumentID:  documentID,
		Success:     false,
		Message:     "Ingestion failed",
		ErrorDetail: err.Error(),
	})
}

func (l *AuditLogger) LogDocumentDelete(ctx context.Context, documentID, fileName string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventDocumentDelete,
		DocumentID: documentID,
		Success:    true,
		Message:    fmt.Sprintf("Document deleted: %s", fileName),
		Details:    map[string]any{"file_name": fileName},
	})
}

func (l *AuditLogger) LogSearch(ctx context.Context, query string, resultCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventSearch,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Search returned %d results", resultCount),
		Details: map[string]any{
			"query":        query,
			"result_count": resultCount,
		},
	})
}

func (l *AuditLogger) LogLLMResponse(ctx context.Context, provider string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType:  AuditEventLLMResponse,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("LLM response from %s", provider),
		Details: map[string]any{
			"provider":      provider,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

func (l *AuditLogger) LogLLMError(ctx context.Context, provider string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s", provider),
		ErrorDetail: err.Error(),
		Details:     map[string]any{"provider": provider},
	})
}

func (l *AuditLogger) LogFileStore(ctx context.Context, path string, size int) {
	l.Log(&AuditEvent{
		EventType: AuditEventFileStore,
		Success:   true,
		Message:   fmt.Sprintf("Stored file: %s", path),
		Details: map[string]any{
			"path": path,
			"size": size,
		},
	})
}

func (l *AuditLogger) LogWorkflowStart(ctx context.Context, workflowID, documentID string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowStart,
		WorkflowID: workflowID,
		DocumentID: documentID,
		Success:    true,
		Message:    "Workflow started",
	})
}

// Close releases the underlying file when the trail goes to one.
func (l *AuditLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

var (
	globalAudit     *AuditLogger
	globalAuditOnce sync.Once
	disabledAudit   = &AuditLogger{}
)

// InitGlobalAuditLogger sets up the process-wide audit trail. Only the
// first call takes effect.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	globalAuditOnce.Do(func() {
		globalAudit, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the process-wide audit logger, or a no-op one before
// InitGlobalAuditLogger has run.
func Audit() *AuditLogger {
	if globalAudit == nil {
		return disabledAudit
	}
	return globalAudit
}
