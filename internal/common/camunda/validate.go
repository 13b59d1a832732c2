// internal/common/camunda/validate.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"jobmatch-workers/internal/common/metrics"
)

// InputValidator checks a raw job payload against the schema registered for
// a task type. The activity registry implements it.
type InputValidator interface {
	ValidateInput(taskType string, payload map[string]interface{}) error
}

// ValidatedHandler rejects jobs whose variables fail the registered input
// schema before the wrapped handler runs. Rejected jobs throw a
// VALIDATION_FAILED BPMN error; the workflow decides what happens next.
type ValidatedHandler struct {
	taskType  string
	validator InputValidator
	next      JobHandler
	logger    *zap.Logger
}

func NewValidatedHandler(taskType string, validator InputValidator, next JobHandler, logger *zap.Logger) *ValidatedHandler {
	return &ValidatedHandler{
		taskType:  taskType,
		validator: validator,
		next:      next,
		logger:    logger,
	}
}

func (h *ValidatedHandler) Handle(client worker.JobClient, job entities.Job) error {
	if err := checkJobInput(h.validator, h.taskType, job.Variables); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(h.taskType, "VALIDATION_FAILED").Inc()
		h.logger.Warn("job input rejected by schema",
			zap.String("taskType", h.taskType),
			zap.Int64("jobKey", job.Key),
			zap.Error(err),
		)

		_, terr := client.NewThrowErrorCommand().
			JobKey(job.Key).
			ErrorCode("VALIDATION_FAILED").
			ErrorMessage(err.Error()).
			Send(context.Background())
		if terr != nil {
			h.logger.Error("failed to throw error", zap.Error(terr))
		}
		return nil
	}

	return h.next.Handle(client, job)
}

// checkJobInput parses the raw job variables and runs them through the
// validator. An empty variables string validates as an empty object.
func checkJobInput(v InputValidator, taskType, variables string) error {
	payload := map[string]interface{}{}
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &payload); err != nil {
			return fmt.Errorf("malformed job variables: %w", err)
		}
	}
	return v.ValidateInput(taskType, payload)
}
