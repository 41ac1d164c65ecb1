package notification_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/approvion/pkg/channels/gochannel"
	"github.com/dukex/approvion/pkg/eventbus"
	"github.com/dukex/approvion/pkg/events"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu       sync.Mutex
	messages map[string][]string // recipient ID -> messages
}

func newCaptureSender() *captureSender {
	return &captureSender{messages: make(map[string][]string)}
}

func (s *captureSender) Send(_ context.Context, recipient models.Identity, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[recipient.ID] = append(s.messages[recipient.ID], message)

	return nil
}

func (s *captureSender) count(recipientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages[recipientID])
}

func (s *captureSender) last(recipientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[recipientID]
	if len(msgs) == 0 {
		return ""
	}

	return msgs[len(msgs)-1]
}

func setupConsumer(t *testing.T) (eventbus.EventBus, *captureSender) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	sender := newCaptureSender()
	consumer := notification.NewConsumer(bus, sender, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Start(ctx))

	return bus, sender
}

func base(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:           "evt-1",
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		RequestID:    "req-1",
		WorkflowType: "expense",
	}
}

func TestConsumer_ApprovalRequestedNotifiesApprover(t *testing.T) {
	t.Parallel()

	bus, sender := setupConsumer(t)

	err := bus.Publish(context.Background(), "req-1", events.ApprovalRequested{
		BaseEvent: base(events.ApprovalRequestedEvent),
		Approver:  models.Identity{ID: "MGR001", Name: "Sarah Johnson"},
		Step:      "expense_review",
		Summary:   "Expense Reimbursement: $750.00",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return sender.count("MGR001") == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, sender.last("MGR001"), "req-1")
	assert.Contains(t, sender.last("MGR001"), "$750.00")
}

func TestConsumer_RequestCompletedNotifiesRequester(t *testing.T) {
	t.Parallel()

	bus, sender := setupConsumer(t)

	err := bus.Publish(context.Background(), "req-1", events.RequestCompleted{
		BaseEvent: base(events.RequestCompletedEvent),
		Requester: models.Identity{ID: "EMP042", Name: "Alex Morgan"},
		Status:    models.RequestStatusApproved,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return sender.count("EMP042") == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, sender.last("EMP042"), "approved")
}

func TestConsumer_RequestEscalatedNotifiesEveryNewApprover(t *testing.T) {
	t.Parallel()

	bus, sender := setupConsumer(t)

	err := bus.Publish(context.Background(), "req-1", events.RequestEscalated{
		BaseEvent: base(events.RequestEscalatedEvent),
		Step:      "expense_review",
		Approvers: []models.Identity{
			{ID: "DIR001", Name: "Emma Wilson"},
			{ID: "FIN001", Name: "Lisa Rodriguez"},
		},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return sender.count("DIR001") == 1 && sender.count("FIN001") == 1
	}, 2*time.Second, 10*time.Millisecond)
}
