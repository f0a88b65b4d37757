// Package usagelog persists the usage-record list to a GitHub-hosted JSON
// blob with optimistic concurrency, or to a local file when the remote store
// is not configured or gives up.
package usagelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ideaforge-io/ideaforge/internal/session"
)

// FileWriter persists the record list as a pretty-printed JSON array on
// local disk. Writes go through a temp file and rename.
type FileWriter struct {
	path string
	mu   sync.Mutex
}

func NewFileWriter(path string) (*FileWriter, error) {
	if path == "" {
		return nil, errors.New("usage log path required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create usage log dir: %w", err)
		}
	}
	return &FileWriter{path: path}, nil
}

func (w *FileWriter) Write(ctx context.Context, records []session.UsageRecord) error {
	payload, err := marshalRecords(records)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write usage log: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace usage log: %w", err)
	}
	return nil
}

func (w *FileWriter) Load(ctx context.Context) ([]session.UsageRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read usage log: %w", err)
	}
	return unmarshalRecords(data)
}

func marshalRecords(records []session.UsageRecord) ([]byte, error) {
	if records == nil {
		records = []session.UsageRecord{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode usage records: %w", err)
	}
	return append(payload, '\n'), nil
}

func unmarshalRecords(data []byte) ([]session.UsageRecord, error) {
	var records []session.UsageRecord
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode usage records: %w", err)
	}
	return records, nil
}
