// Package web provides HTTP handlers and REST API endpoints for approval requests.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	engine      *engine.Engine
	registry    *registry.Registry
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	reg *registry.Registry,
	persist persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		registry:    reg,
		persistence: persist,
		validator:   validate,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	types := h.registry.Types()
	workflows := make([]WorkflowResponse, 0, len(types))

	for _, workflowType := range types {
		def, err := h.registry.Lookup(workflowType)
		if err != nil {
			continue
		}

		workflows = append(workflows, WorkflowResponse{
			Type:        def.Type,
			DisplayName: def.DisplayName,
			Description: def.Description,
		})
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) CreateRequest(c fiber.Ctx) error {
	var req CreateRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := h.engine.CreateRequest(
		c.Context(),
		req.WorkflowType,
		req.Requester.Identity(),
		req.Title,
		req.Description,
		req.Priority,
		req.Payload,
	)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

func (h *APIHandlers) GetRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	request, err := h.engine.GetRequest(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

func (h *APIHandlers) ListRequests(c fiber.Ctx) error {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		return badRequest(c, "requester_id query parameter is required")
	}

	var status *models.RequestStatus

	if statusStr := c.Query("status"); statusStr != "" {
		s := models.RequestStatus(statusStr)
		status = &s
	}

	requests, err := h.engine.ListRequests(c.Context(), requesterID, status)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"requests": requests, "total_count": len(requests)})
}

func (h *APIHandlers) SubmitRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	request, err := h.engine.Submit(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

func (h *APIHandlers) DecideRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req DecideRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := h.engine.Decide(c.Context(), id, req.ApproverID, models.Decision(req.Decision), req.Comment)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

func (h *APIHandlers) CancelRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	var req CancelRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := h.engine.Cancel(c.Context(), id, req.Actor.Identity())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(request)
}

func (h *APIHandlers) GetAuditTrail(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Request ID is required")
	}

	// A missing request and an empty trail are indistinguishable in some
	// stores, so check existence first.
	if _, err := h.engine.GetRequest(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	trail, err := h.engine.GetAuditTrail(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"entries": trail, "total_count": len(trail)})
}

func (h *APIHandlers) ListPendingApprovals(c fiber.Ctx) error {
	approverID := c.Params("approverId")
	if approverID == "" {
		return badRequest(c, "Approver ID is required")
	}

	requests, err := h.engine.ListPendingApprovals(c.Context(), approverID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"requests": requests, "total_count": len(requests)})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()

	repositoryCheck := "ok"
	repOk := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repositoryCheck = err.Error()
		repOk = false
	}

	status := "unhealthy"
	message := "Approvion API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Approvion API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
