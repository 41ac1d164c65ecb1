package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
)

// RequestRepository handles request-related file operations.
type RequestRepository struct {
	root string
	mu   sync.RWMutex
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(root string) *RequestRepository {
	return &RequestRepository{root: root}
}

func (rr *RequestRepository) dir() string {
	return path.Join(rr.root, "requests")
}

// Save writes the request as a JSON file named by its ID.
func (rr *RequestRepository) Save(_ context.Context, request *models.Request) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if err := os.MkdirAll(rr.dir(), 0o755); err != nil {
		return persistence.NewRequestError("Save", request.ID, err)
	}

	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return persistence.NewRequestError("Save", request.ID, err)
	}

	filePath := path.Join(rr.dir(), request.ID+".json")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return persistence.NewRequestError("Save", request.ID, err)
	}

	return nil
}

// GetByID loads a request by its identifier.
func (rr *RequestRepository) GetByID(_ context.Context, id string) (*models.Request, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.read(id)
}

func (rr *RequestRepository) read(id string) (*models.Request, error) {
	data, err := os.ReadFile(path.Join(rr.dir(), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewRequestError("GetByID", id, persistence.ErrRequestNotFound)
		}

		return nil, persistence.NewRequestError("GetByID", id, err)
	}

	var request models.Request
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, persistence.NewRequestError("GetByID", id, fmt.Errorf("corrupt request file: %w", err))
	}

	return &request, nil
}

// ListByRequester returns a requester's requests, newest first, optionally
// filtered by status.
func (rr *RequestRepository) ListByRequester(ctx context.Context, requesterID string, status *models.RequestStatus) ([]*models.Request, error) {
	return rr.list(func(r *models.Request) bool {
		if r.Requester.ID != requesterID {
			return false
		}

		return status == nil || r.Status == *status
	})
}

// ListPendingByApprover returns requests holding a pending slot for the approver.
func (rr *RequestRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*models.Request, error) {
	return rr.list(func(r *models.Request) bool {
		for _, slot := range r.Slots {
			if slot.Approver.ID == approverID && slot.Decision == models.SlotDecisionPending {
				return true
			}
		}

		return false
	})
}

// ListInReview returns requests currently waiting on approval slots.
func (rr *RequestRepository) ListInReview(ctx context.Context) ([]*models.Request, error) {
	return rr.list(func(r *models.Request) bool {
		return r.Status == models.RequestStatusInReview
	})
}

func (rr *RequestRepository) list(keep func(*models.Request) bool) ([]*models.Request, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	root := os.DirFS(rr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list request files: %w", err)
	}

	requests := make([]*models.Request, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // Remove .json extension

		request, err := rr.read(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load request %s: %w", id, err)
		}

		if keep(request) {
			requests = append(requests, request)
		}
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})

	return requests, nil
}
