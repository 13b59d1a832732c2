// internal/workers/outreach/send-outreach/handler.go
package sendoutreach

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	stderrors "jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/common/validation"
)

const (
	TaskType = "send-outreach-email"
)

// Handler is the delivery executor behind the outreach coordinator: it takes
// an already-approved outreach request and pushes the email out through the
// configured provider. A delivery failure completes the job with Success
// false so the workflow can feed the result callback; only malformed input
// throws.
type Handler struct {
	sender EmailSender
	logger logger.Logger
	config *Config
}

func NewHandler(config *Config, sender EmailSender, log logger.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		config: config,
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

// Execute delivers the outreach email. Exposed for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.WorkID == "" {
		return nil, stderrors.NewValidationFailedError("workId is required")
	}
	if !validation.ValidateEmail(input.HREmail) {
		return nil, stderrors.NewValidationFailedError(fmt.Sprintf("malformed HR email: %q", input.HREmail))
	}
	if input.Subject == "" || input.Body == "" {
		return nil, stderrors.NewValidationFailedError("subject and body are required")
	}

	messageID, err := h.sender.SendEmail(ctx, h.config.FromEmail, input.HREmail, input.Subject, input.Body)
	sentAt := time.Now().UTC().Format(time.RFC3339)
	if err != nil {
		h.logger.Error("outreach email delivery failed", map[string]interface{}{
			"workId":   input.WorkID,
			"to":       input.HREmail,
			"provider": h.sender.Provider(),
			"error":    err.Error(),
		})
		return &Output{
			WorkID:   input.WorkID,
			Success:  false,
			Provider: h.sender.Provider(),
			Reason:   stderrors.NewOutreachSendFailedError(err).Error(),
			SentAt:   sentAt,
		}, nil
	}

	h.logger.Info("outreach email delivered", map[string]interface{}{
		"workId":    input.WorkID,
		"to":        input.HREmail,
		"provider":  h.sender.Provider(),
		"messageId": messageID,
	})
	return &Output{
		WorkID:    input.WorkID,
		Success:   true,
		MessageID: messageID,
		Provider:  h.sender.Provider(),
		SentAt:    sentAt,
	}, nil
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
