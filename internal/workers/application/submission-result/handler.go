// internal/workers/application/submission-result/handler.go
package submissionresult

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	stderrors "jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/lifecycle"
)

const (
	TaskType = "application-submission-result"
)

// Handler feeds submission completion callbacks into the state machine.
// Late or stale callbacks are swallowed there, so this worker always
// completes its job.
type Handler struct {
	machine *lifecycle.Machine
	logger  logger.Logger
	config  *Config
}

func NewHandler(config *Config, machine *lifecycle.Machine, log logger.Logger) *Handler {
	return &Handler{
		machine: machine,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
		config:  config,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		code := stderrors.CodeOf(err)
		if code == "" {
			code = "UNKNOWN_ERROR"
		}
		h.failJob(client, job, string(code), err.Error())
		return nil
	}

	h.completeJob(client, job, output)
	return nil
}

// Execute applies the callback. Exposed for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.WorkID == "" {
		return nil, stderrors.NewValidationFailedError("workId is required")
	}

	if err := h.machine.OnSubmissionResult(ctx, input.WorkID, input.Success, input.Reason); err != nil {
		return nil, err
	}

	return &Output{WorkID: input.WorkID, Processed: true}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}
