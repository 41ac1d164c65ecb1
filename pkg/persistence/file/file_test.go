package file_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(id, requesterID string, status models.RequestStatus) *models.Request {
	return &models.Request{
		ID:           id,
		WorkflowType: "expense",
		Requester:    models.Identity{ID: requesterID, Name: "Alex Morgan"},
		Title:        "Team offsite travel",
		Payload:      map[string]any{"amount": 120.5},
		Status:       status,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestRequestRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	repo := file.NewRequestRepository(t.TempDir())
	ctx := context.Background()

	request := testRequest("req-1", "EMP042", models.RequestStatusDraft)
	require.NoError(t, repo.Save(ctx, request))

	loaded, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, request.ID, loaded.ID)
	assert.Equal(t, request.Requester, loaded.Requester)
	assert.Equal(t, models.RequestStatusDraft, loaded.Status)
	assert.InDelta(t, 120.5, loaded.Payload["amount"], 0.001)

	// Save is an upsert.
	request.Status = models.RequestStatusSubmitted
	require.NoError(t, repo.Save(ctx, request))

	loaded, err = repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusSubmitted, loaded.Status)
}

func TestRequestRepository_GetByIDNotFound(t *testing.T) {
	t.Parallel()

	repo := file.NewRequestRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrRequestNotFound)
	assert.True(t, persistence.IsRequestNotFound(err))
}

func TestRequestRepository_ListByRequester(t *testing.T) {
	t.Parallel()

	repo := file.NewRequestRepository(t.TempDir())
	ctx := context.Background()

	first := testRequest("req-1", "EMP042", models.RequestStatusDraft)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, testRequest("req-2", "EMP042", models.RequestStatusInReview)))
	require.NoError(t, repo.Save(ctx, testRequest("req-3", "EMP099", models.RequestStatusDraft)))

	all, err := repo.ListByRequester(ctx, "EMP042", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, "req-2", all[0].ID)
	assert.Equal(t, "req-1", all[1].ID)

	draft := models.RequestStatusDraft

	filtered, err := repo.ListByRequester(ctx, "EMP042", &draft)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "req-1", filtered[0].ID)
}

func TestRequestRepository_ListPendingByApprover(t *testing.T) {
	t.Parallel()

	repo := file.NewRequestRepository(t.TempDir())
	ctx := context.Background()

	pending := testRequest("req-1", "EMP042", models.RequestStatusInReview)
	pending.Slots = []*models.ApprovalSlot{
		{Approver: models.Identity{ID: "MGR001"}, Decision: models.SlotDecisionPending, Step: "review"},
	}
	require.NoError(t, repo.Save(ctx, pending))

	decided := testRequest("req-2", "EMP042", models.RequestStatusInReview)
	decided.Slots = []*models.ApprovalSlot{
		{Approver: models.Identity{ID: "MGR001"}, Decision: models.SlotDecisionApproved, Step: "review"},
	}
	require.NoError(t, repo.Save(ctx, decided))

	requests, err := repo.ListPendingByApprover(ctx, "MGR001")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)

	none, err := repo.ListPendingByApprover(ctx, "FIN001")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRequestRepository_ListInReview(t *testing.T) {
	t.Parallel()

	repo := file.NewRequestRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRequest("req-1", "EMP042", models.RequestStatusInReview)))
	require.NoError(t, repo.Save(ctx, testRequest("req-2", "EMP042", models.RequestStatusApproved)))

	requests, err := repo.ListInReview(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
}

func TestAuditRepository_AppendOrder(t *testing.T) {
	t.Parallel()

	repo := file.NewAuditRepository(t.TempDir())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		entry := &models.AuditEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			RequestID: "req-1",
			Action:    models.AuditRequestSubmitted,
			Actor:     models.Identity{ID: "EMP042"},
			ActorType: models.ActorTypeUser,
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, repo.Append(ctx, entry))
	}

	entries, err := repo.ListByRequest(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	for i, entry := range entries {
		assert.Equal(t, fmt.Sprintf("entry-%d", i+1), entry.ID)
	}
}

func TestAuditRepository_EmptyTrail(t *testing.T) {
	t.Parallel()

	repo := file.NewAuditRepository(t.TempDir())

	entries, err := repo.ListByRequest(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditRepository_SequenceSurvivesRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	first := file.NewAuditRepository(dir)
	require.NoError(t, first.Append(ctx, &models.AuditEntry{ID: "a", RequestID: "req-1"}))
	require.NoError(t, first.Append(ctx, &models.AuditEntry{ID: "b", RequestID: "req-1"}))

	// A fresh repository over the same directory keeps appending, never
	// overwriting earlier entries.
	second := file.NewAuditRepository(dir)
	require.NoError(t, second.Append(ctx, &models.AuditEntry{ID: "c", RequestID: "req-1"}))

	entries, err := second.ListByRequest(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[2].ID)
}

func TestPersistenceHealthCheck(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	assert.NoError(t, persist.HealthCheck(ctx))
	assert.NoError(t, persist.Close(ctx))
}
