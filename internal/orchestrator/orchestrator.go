// Package orchestrator is the boundary between the core engine and the task
// execution layer. Work requests are published as workflow messages; results
// come back asynchronously through the callback workers.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jobmatch-workers/internal/common/camunda"
	"jobmatch-workers/internal/common/logger"
)

const (
	MsgApplicationSubmissionRequested = "application-submission-requested"
	MsgOutreachEmailRequested         = "outreach-email-requested"
)

// SubmitApplicationRequest asks the execution layer to submit an application.
type SubmitApplicationRequest struct {
	RecordID  string `json:"recordId"`
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	ResumeRef string `json:"resumeRef,omitempty"`
	Attempt   int    `json:"attempt"`
}

// OutreachEmailRequest asks the execution layer to email an HR contact.
type OutreachEmailRequest struct {
	RecordID  string `json:"recordId"`
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	HRName    string `json:"hrName,omitempty"`
	HREmail   string `json:"hrEmail"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// TaskOrchestrator enqueues asynchronous work. Both methods return a work id
// that later correlates the completion callback; failures to enqueue map to
// ORCHESTRATOR_UNAVAILABLE.
type TaskOrchestrator interface {
	SubmitApplication(ctx context.Context, req SubmitApplicationRequest) (string, error)
	SendOutreachEmail(ctx context.Context, req OutreachEmailRequest) (string, error)
}

// ZeebeOrchestrator publishes work requests as Zeebe messages. The generated
// work id doubles as the message correlation key.
type ZeebeOrchestrator struct {
	client *camunda.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewZeebeOrchestrator(client *camunda.Client, log logger.Logger) *ZeebeOrchestrator {
	return &ZeebeOrchestrator{
		client: client,
		ttl:    5 * time.Minute,
		logger: log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// SubmitApplication publishes an application-submission work request.
func (z *ZeebeOrchestrator) SubmitApplication(ctx context.Context, req SubmitApplicationRequest) (string, error) {
	workID := uuid.New().String()
	if err := z.publish(ctx, MsgApplicationSubmissionRequested, workID, map[string]interface{}{
		"workId":    workID,
		"recordId":  req.RecordID,
		"studentId": req.StudentID,
		"jobId":     req.JobID,
		"resumeRef": req.ResumeRef,
		"attempt":   req.Attempt,
	}); err != nil {
		return "", err
	}

	z.logger.Info("submission work requested", map[string]interface{}{
		"workId":   workID,
		"recordId": req.RecordID,
		"attempt":  req.Attempt,
	})
	return workID, nil
}

// SendOutreachEmail publishes an outreach-email work request.
func (z *ZeebeOrchestrator) SendOutreachEmail(ctx context.Context, req OutreachEmailRequest) (string, error) {
	workID := uuid.New().String()
	if err := z.publish(ctx, MsgOutreachEmailRequested, workID, map[string]interface{}{
		"workId":    workID,
		"recordId":  req.RecordID,
		"studentId": req.StudentID,
		"jobId":     req.JobID,
		"hrName":    req.HRName,
		"hrEmail":   req.HREmail,
		"subject":   req.Subject,
		"body":      req.Body,
	}); err != nil {
		return "", err
	}

	z.logger.Info("outreach work requested", map[string]interface{}{
		"workId":   workID,
		"recordId": req.RecordID,
	})
	return workID, nil
}

func (z *ZeebeOrchestrator) publish(ctx context.Context, messageName, correlationKey string, variables map[string]interface{}) error {
	_, err := z.client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := z.client.GetClient().NewPublishMessageCommand().
			MessageName(messageName).
			CorrelationKey(correlationKey).
			TimeToLive(z.ttl).
			VariablesFromMap(variables)
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	}, "publish "+messageName)
	return err
}
