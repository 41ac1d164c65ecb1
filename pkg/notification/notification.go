// Package notification delivers best-effort messages to approvers and
// requesters from the request lifecycle events the engine publishes.
// Delivery is one-way: failures are logged, never propagated back into the
// engine's transitions.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/approvion/pkg/eventbus"
	"github.com/dukex/approvion/pkg/events"
	"github.com/dukex/approvion/pkg/models"
)

// Sender delivers one message to one recipient. Chat or email integrations
// implement this; the engine never sees it.
type Sender interface {
	Send(ctx context.Context, recipient models.Identity, message string) error
}

// LogSender writes messages to the log. Default sender for deployments
// without a chat integration.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, recipient models.Identity, message string) error {
	s.Logger.InfoContext(ctx, "Notification", "recipient", recipient.ID, "message", message)

	return nil
}

// Consumer subscribes to the event bus and turns lifecycle events into
// notifications.
type Consumer struct {
	bus    eventbus.EventBus
	sender Sender
	logger *slog.Logger
}

func NewConsumer(bus eventbus.EventBus, sender Sender, logger *slog.Logger) *Consumer {
	return &Consumer{bus: bus, sender: sender, logger: logger}
}

// Start registers the event handlers and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	c.bus.Handle(events.ApprovalRequestedEvent, c.onApprovalRequested)
	c.bus.Handle(events.ApprovalDecidedEvent, c.onApprovalDecided)
	c.bus.Handle(events.RequestCompletedEvent, c.onRequestCompleted)
	c.bus.Handle(events.RequestEscalatedEvent, c.onRequestEscalated)

	return c.bus.Subscribe(ctx)
}

func (c *Consumer) onApprovalRequested(ctx context.Context, event any) error {
	e, ok := event.(*events.ApprovalRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	message := fmt.Sprintf("Approval requested for %s request %s", e.WorkflowType, e.RequestID)
	if e.Summary != "" {
		message += "\n" + e.Summary
	}

	c.deliver(ctx, e.Approver, message)

	return nil
}

func (c *Consumer) onApprovalDecided(ctx context.Context, event any) error {
	e, ok := event.(*events.ApprovalDecided)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	c.logger.InfoContext(ctx, "Approval decided",
		"request_id", e.RequestID,
		"approver", e.Approver.ID,
		"decision", e.Decision,
	)

	return nil
}

func (c *Consumer) onRequestCompleted(ctx context.Context, event any) error {
	e, ok := event.(*events.RequestCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	message := fmt.Sprintf("Your %s request %s is %s", e.WorkflowType, e.RequestID, e.Status)
	c.deliver(ctx, e.Requester, message)

	return nil
}

func (c *Consumer) onRequestEscalated(ctx context.Context, event any) error {
	e, ok := event.(*events.RequestEscalated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	message := fmt.Sprintf("Escalated %s request %s awaits your approval", e.WorkflowType, e.RequestID)
	for _, approver := range e.Approvers {
		c.deliver(ctx, approver, message)
	}

	return nil
}

// deliver sends one message, logging failure instead of returning it: a
// missed notification must never nack the event into a redelivery loop.
func (c *Consumer) deliver(ctx context.Context, recipient models.Identity, message string) {
	if err := c.sender.Send(ctx, recipient, message); err != nil {
		c.logger.WarnContext(ctx, "Failed to deliver notification",
			"recipient", recipient.ID,
			"error", err,
		)
	}
}
