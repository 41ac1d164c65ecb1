// Package events defines event types and structures for request lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/approvion/pkg/models"
)

type EventType string

// Kafka topic for request lifecycle events.
const Topic = "approvion.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RequestSubmittedEvent  EventType = "request.submitted"
	RequestCompletedEvent  EventType = "request.completed"
	RequestCancelledEvent  EventType = "request.cancelled"
	RequestEscalatedEvent  EventType = "request.escalated"
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalDecidedEvent   EventType = "approval.decided"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	WorkflowType string    `json:"workflow_type"`
}

type RequestSubmitted struct {
	BaseEvent

	Requester models.Identity `json:"requester"`
	Summary   string          `json:"summary,omitempty"`
}

func (e RequestSubmitted) GetType() EventType {
	return RequestSubmittedEvent
}

type RequestCompleted struct {
	BaseEvent

	Requester models.Identity      `json:"requester"`
	Status    models.RequestStatus `json:"status"`
}

func (e RequestCompleted) GetType() EventType {
	return RequestCompletedEvent
}

type RequestCancelled struct {
	BaseEvent

	Requester models.Identity `json:"requester"`
}

func (e RequestCancelled) GetType() EventType {
	return RequestCancelledEvent
}

type RequestEscalated struct {
	BaseEvent

	Step      string            `json:"step"`
	Approvers []models.Identity `json:"approvers"`
}

func (e RequestEscalated) GetType() EventType {
	return RequestEscalatedEvent
}

// ApprovalRequested is published once per approver whose slot was opened; the
// notification consumer turns it into a direct message.
type ApprovalRequested struct {
	BaseEvent

	Approver models.Identity `json:"approver"`
	Step     string          `json:"step"`
	Summary  string          `json:"summary,omitempty"`
}

func (e ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalDecided struct {
	BaseEvent

	Approver models.Identity `json:"approver"`
	Decision models.Decision `json:"decision"`
	Comment  string          `json:"comment,omitempty"`
}

func (e ApprovalDecided) GetType() EventType {
	return ApprovalDecidedEvent
}
