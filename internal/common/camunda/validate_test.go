package camunda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/pkg/registry"
)

func applyRegistry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{
		Activities: []registry.Activity{
			{
				TaskType: "apply-to-job",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"studentId", "jobId"},
					"properties": map[string]interface{}{
						"studentId": map[string]interface{}{"type": "string", "minLength": 1},
						"jobId":     map[string]interface{}{"type": "string", "minLength": 1},
					},
				},
			},
		},
	}
}

func TestCheckJobInputAcceptsValidPayload(t *testing.T) {
	err := checkJobInput(applyRegistry(), "apply-to-job",
		`{"studentId":"student-1","jobId":"job-1"}`)
	assert.NoError(t, err)
}

func TestCheckJobInputRejectsMissingField(t *testing.T) {
	err := checkJobInput(applyRegistry(), "apply-to-job", `{"studentId":"student-1"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobId")
}

func TestCheckJobInputRejectsMalformedJSON(t *testing.T) {
	err := checkJobInput(applyRegistry(), "apply-to-job", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed job variables")
}

func TestCheckJobInputEmptyVariablesValidateAsEmptyObject(t *testing.T) {
	err := checkJobInput(applyRegistry(), "apply-to-job", "")
	require.Error(t, err, "required fields are missing from an empty object")
}
