package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
)

// AuditRepository stores audit entries as one numbered file per entry under
// audit/<request_id>/. Appending creates a new file and fsyncs it; existing
// files are never rewritten, which keeps the trail physically append-only.
type AuditRepository struct {
	root string
	mu   sync.Mutex
	seq  map[string]int
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(root string) *AuditRepository {
	return &AuditRepository{root: root, seq: make(map[string]int)}
}

func (ar *AuditRepository) dir(requestID string) string {
	return path.Join(ar.root, "audit", requestID)
}

// Append durably writes one entry. The caller must not consider the
// transition committed until Append returns nil.
func (ar *AuditRepository) Append(_ context.Context, entry *models.AuditEntry) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	dir := ar.dir(entry.RequestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	next, err := ar.nextSequence(entry.RequestID)
	if err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	filePath := path.Join(dir, fmt.Sprintf("%06d.json", next))

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()

		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()

		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrAuditAppendFailed, err)
	}

	ar.seq[entry.RequestID] = next

	return nil
}

// ListByRequest returns a request's entries in append order.
func (ar *AuditRepository) ListByRequest(_ context.Context, requestID string) ([]*models.AuditEntry, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	dir := ar.dir(requestID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.AuditEntry{}, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}

	sort.Strings(files)

	entries := make([]*models.AuditEntry, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(path.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read audit entry %s: %w", file, err)
		}

		var entry models.AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("corrupt audit entry %s: %w", file, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

func (ar *AuditRepository) nextSequence(requestID string) (int, error) {
	if last, ok := ar.seq[requestID]; ok {
		return last + 1, nil
	}

	files, err := fs.Glob(os.DirFS(ar.dir(requestID)), "*.json")
	if err != nil {
		return 0, err
	}

	return len(files) + 1, nil
}
