// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByTaskType returns the activity registered for a task type.
func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// ValidateInput checks a job payload against the activity's input schema.
// Activities without a schema accept any payload.
func (r *ActivityRegistry) ValidateInput(taskType string, payload map[string]interface{}) error {
	activity, ok := r.FindByTaskType(taskType)
	if !ok {
		return fmt.Errorf("no activity registered for task type %q", taskType)
	}
	if len(activity.InputSchema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(activity.InputSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error for %q: %w", taskType, err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return fmt.Errorf("invalid payload for %q: %s", taskType, strings.Join(issues, "; "))
}
