// Package registry holds the workflow definitions known to the engine.
// Definitions are registered once at startup and frozen; after that,
// concurrent lookups are safe without locking.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/approvion/pkg/models"
)

var (
	ErrDuplicateDefinition = fmt.Errorf("workflow definition already registered")
	ErrUnknownWorkflow     = fmt.Errorf("unknown workflow type")
	ErrRegistryFrozen      = fmt.Errorf("registry is frozen")
)

type Registry struct {
	logger      *slog.Logger
	mu          sync.Mutex
	frozen      bool
	definitions map[string]*models.WorkflowDefinition
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:      logger,
		definitions: make(map[string]*models.WorkflowDefinition),
	}
}

// Register validates a definition and adds it to the registry.
func (r *Registry) Register(def *models.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("cannot register %q: %w", def.Type, ErrRegistryFrozen)
	}

	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("%q: %w", def.Type, ErrDuplicateDefinition)
	}

	r.definitions[def.Type] = def
	r.logger.Info("Registered workflow definition", "workflow_type", def.Type, "steps", len(def.Steps))

	return nil
}

// Freeze closes the registry for registration. Called once after startup
// wiring; lookups after Freeze need no synchronization.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
}

// Lookup returns the definition for a workflow type.
func (r *Registry) Lookup(workflowType string) (*models.WorkflowDefinition, error) {
	def, ok := r.definitions[workflowType]
	if !ok {
		return nil, fmt.Errorf("%q: %w", workflowType, ErrUnknownWorkflow)
	}

	return def, nil
}

// Types returns the registered workflow type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}

	return types
}

// HealthCheck reports whether the registry holds any definitions.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.definitions) == 0 {
		return "No workflow definitions registered", false
	}

	return fmt.Sprintf("%d workflow definitions registered", len(r.definitions)), true
}
