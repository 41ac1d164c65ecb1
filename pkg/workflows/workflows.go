// Package workflows defines the built-in approval workflows and the demo
// approver directory their routing rules reference.
package workflows

import (
	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/models"
	"github.com/dukex/approvion/pkg/registry"
)

// RegisterAll registers the built-in workflow definitions and their action
// handlers, then freezes the registry.
func RegisterAll(reg *registry.Registry, eng *engine.Engine) error {
	for _, def := range []*models.WorkflowDefinition{PTO(), Expense(), Onboarding()} {
		if err := reg.Register(def); err != nil {
			return err
		}
	}

	eng.RegisterAction(ChecklistHandlerName, GenerateChecklist)
	reg.Freeze()

	return nil
}
