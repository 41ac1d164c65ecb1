package engine

import (
	"fmt"

	"github.com/dukex/approvion/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// validateForm checks a payload against a form step's field specs and, when
// the step declares one, its JSON Schema. All failures are collected so the
// requester sees every problem at once.
func (e *Engine) validateForm(step *models.StepSpec, payload map[string]any) error {
	verr := &models.ValidationError{}

	for _, field := range step.Fields {
		value, present := payload[field.Name]
		if !present || value == nil || value == "" {
			if field.Required {
				verr.Add(field.Name, "required field is missing")
			}

			continue
		}

		for _, validate := range field.Validators {
			if err := validate(field.Name, value, payload); err != nil {
				verr.Add(field.Name, err.Error())

				break
			}
		}
	}

	if step.Schema != nil {
		e.validateSchema(step, payload, verr)
	}

	if len(verr.Fields) > 0 {
		return verr
	}

	return nil
}

func (e *Engine) validateSchema(step *models.StepSpec, payload map[string]any, verr *models.ValidationError) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(step.Schema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		verr.Add("payload", fmt.Sprintf("schema validation: %v", err))

		return
	}

	for _, desc := range result.Errors() {
		verr.Add(desc.Field(), desc.Description())
	}
}
