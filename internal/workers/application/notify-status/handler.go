// internal/workers/application/notify-status/handler.go
package notifystatus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	stderrors "jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/common/validation"
	"jobmatch-workers/internal/models"
)

const (
	TaskType = "notify-application-status"
)

// EmailSender delivers a notification email. Satisfied by aws.SESClient.
type EmailSender interface {
	SendSimpleEmail(ctx context.Context, from, to, subject, body string) (string, error)
}

// SMSSender delivers a notification SMS. Satisfied by aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) (string, error)
}

// Handler notifies a student about a state change of their application.
// Email and SMS channels are independent: each is attempted when its
// address is present, and a failure on one does not block the other.
type Handler struct {
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
	config *Config
}

func NewHandler(config *Config, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	return &Handler{
		email:  email,
		sms:    sms,
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

// Execute sends the notification through the available channels. Exposed for
// tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if _, err := models.ParseApplicationState(input.State); err != nil {
		return nil, err
	}
	if input.StudentEmail == "" && input.StudentPhone == "" {
		return nil, stderrors.NewValidationFailedError("at least one of studentEmail or studentPhone is required")
	}
	if input.StudentEmail != "" && !validation.ValidateEmail(input.StudentEmail) {
		return nil, stderrors.NewValidationFailedError(fmt.Sprintf("malformed student email: %q", input.StudentEmail))
	}
	if input.StudentPhone != "" && !validation.ValidatePhone(input.StudentPhone) {
		return nil, stderrors.NewValidationFailedError(fmt.Sprintf("malformed student phone: %q", input.StudentPhone))
	}

	subject, body := composeNotification(input)
	output := &Output{}
	var emailErr, smsErr error

	if input.StudentEmail != "" && h.email != nil {
		output.EmailMessageID, emailErr = h.email.SendSimpleEmail(ctx, h.config.FromEmail, input.StudentEmail, subject, body)
		if emailErr != nil {
			h.logger.Error("status email failed", map[string]interface{}{
				"to":    input.StudentEmail,
				"error": emailErr.Error(),
			})
		} else {
			output.EmailSent = true
		}
	}

	if input.StudentPhone != "" && h.sms != nil {
		output.SMSMessageID, smsErr = h.sms.SendSMS(ctx, input.StudentPhone, body)
		if smsErr != nil {
			h.logger.Error("status sms failed", map[string]interface{}{
				"to":    input.StudentPhone,
				"error": smsErr.Error(),
			})
		} else {
			output.SMSSent = true
		}
	}

	if !output.EmailSent && !output.SMSSent {
		if emailErr != nil {
			return nil, stderrors.NewNotifySendFailedError("email", emailErr)
		}
		if smsErr != nil {
			return nil, stderrors.NewNotifySendFailedError("sms", smsErr)
		}
		return nil, stderrors.NewNotifySendFailedError("none", fmt.Errorf("no delivery channel configured"))
	}

	h.logger.Info("status notification sent", map[string]interface{}{
		"state":     input.State,
		"emailSent": output.EmailSent,
		"smsSent":   output.SMSSent,
	})
	return output, nil
}

func composeNotification(input *Input) (subject, body string) {
	position := fmt.Sprintf("%s at %s", input.JobTitle, input.Company)

	switch models.ApplicationState(input.State) {
	case models.StateSubmitted:
		subject = fmt.Sprintf("Application submitted: %s", position)
		body = fmt.Sprintf("Good news! Your application for %s was submitted successfully.", position)
	case models.StateFailed:
		subject = fmt.Sprintf("Application could not be submitted: %s", position)
		body = fmt.Sprintf("We could not submit your application for %s. Please try applying again.", position)
	case models.StateWithdrawn:
		subject = fmt.Sprintf("Application withdrawn: %s", position)
		body = fmt.Sprintf("Your application for %s has been withdrawn.", position)
	default:
		subject = fmt.Sprintf("Application update: %s", position)
		body = fmt.Sprintf("Your application for %s is now in state %s.", position, input.State)
	}
	return subject, body
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
