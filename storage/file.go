package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

// FileAuditSink appends audit entries to a local file, one JSON object per
// line. The file is opened in append-only mode; entries are never rewritten.
type FileAuditSink struct {
	mu   sync.Mutex
	file *os.File
	path string
	log  *slog.Logger
}

// NewFileAuditSink opens (or creates) the audit log file at the given path.
func NewFileAuditSink(path string, log *slog.Logger) (*FileAuditSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileAuditSink{file: file, path: path, log: log}, nil
}

// Append writes the entry as a single JSON line.
func (s *FileAuditSink) Append(ctx context.Context, entry interfaces.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	s.log.Debug("Appended audit entry",
		slog.String("path", s.path),
		slog.String("txID", entry.TransactionID),
		slog.String("action", entry.Action))

	return nil
}

// Close closes the underlying file.
func (s *FileAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
