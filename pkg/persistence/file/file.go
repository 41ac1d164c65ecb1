// Package file provides file-based persistence for local development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/approvion/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root        string
	requestRepo *RequestRepository
	auditRepo   *AuditRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		requestRepo: NewRequestRepository(cleanRoot),
		auditRepo:   NewAuditRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) RequestRepository() persistence.RequestRepository {
	return fp.requestRepo
}

func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return fp.auditRepo
}
