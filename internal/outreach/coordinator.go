// Package outreach decides and drives HR outreach emails for submitted
// applications.
package outreach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobmatch-workers/internal/catalog"
	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/lifecycle"
	"jobmatch-workers/internal/models"
	"jobmatch-workers/internal/orchestrator"
)

// SkipReason explains why an outreach email was not sent.
type SkipReason string

const (
	ReasonNoContact          SkipReason = "NoContact"
	ReasonCooldownActive     SkipReason = "CooldownActive"
	ReasonMaxAttemptsReached SkipReason = "MaxAttemptsReached"
	ReasonWrongState         SkipReason = "WrongState"
)

// Decision is the outcome of the outreach policy for one record.
type Decision struct {
	Send   bool
	Reason SkipReason // set when Send is false
}

// Policy is the outreach follow-up policy.
type Policy struct {
	Cooldown    time.Duration // minimum gap between attempts
	MaxAttempts int           // total attempts per record
}

// DefaultPolicy mirrors the configuration defaults: 7-day cooldown, 2 attempts.
var DefaultPolicy = Policy{Cooldown: 168 * time.Hour, MaxAttempts: 2}

// Decide applies the outreach policy. Pure: depends only on its arguments.
//
// Send requires a SUBMITTED record, a present HR contact, a free attempt
// slot, and either no prior attempt or a most recent attempt older than the
// cooldown.
func Decide(record *models.ApplicationRecord, posting *models.JobPosting, now time.Time, policy Policy) Decision {
	if record.State != models.StateSubmitted {
		return Decision{Reason: ReasonWrongState}
	}
	if !posting.HasHRContact() {
		return Decision{Reason: ReasonNoContact}
	}
	if record.OutreachAttemptCount() >= policy.MaxAttempts {
		return Decision{Reason: ReasonMaxAttemptsReached}
	}
	if last := record.LastOutreachAttempt(); last != nil {
		if now.Sub(last.RequestedAt) < policy.Cooldown {
			return Decision{Reason: ReasonCooldownActive}
		}
	}
	return Decision{Send: true}
}

// Coordinator evaluates outreach decisions and emits the work requests.
// Writes to a record serialize through the pair-lock registry shared with
// the state machine, backed by the store's optimistic versioning.
type Coordinator struct {
	store        lifecycle.RecordStore
	catalog      catalog.Catalog
	orchestrator orchestrator.TaskOrchestrator
	locks        *lifecycle.PairLocks
	policy       Policy
	logger       logger.Logger
	now          func() time.Time
}

// NewCoordinator builds the coordinator. locks must be the same registry the
// state machine uses (Machine.Locks()); with a separate registry a machine
// transition and an outreach write on the same pair could interleave.
func NewCoordinator(
	store lifecycle.RecordStore,
	cat catalog.Catalog,
	orch orchestrator.TaskOrchestrator,
	locks *lifecycle.PairLocks,
	policy Policy,
	log logger.Logger,
) *Coordinator {
	if locks == nil {
		locks = lifecycle.NewPairLocks()
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = DefaultPolicy.Cooldown
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}

	return &Coordinator{
		store:        store,
		catalog:      cat,
		orchestrator: orch,
		locks:        locks,
		policy:       policy,
		logger:       log.WithFields(map[string]interface{}{"component": "outreach-coordinator"}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (c *Coordinator) pairLock(studentID, jobID string) *sync.Mutex {
	return c.locks.Get(studentID, jobID)
}

// MaybeContactHR evaluates the policy for the pair and, on a Send decision,
// appends a pending attempt and emits exactly one outreach work request.
// The pending attempt is persisted before emission so a crash between the
// two cannot silently lose it.
func (c *Coordinator) MaybeContactHR(ctx context.Context, studentID, jobID string) (Decision, error) {
	lock := c.pairLock(studentID, jobID)
	lock.Lock()
	defer lock.Unlock()

	record, err := c.store.LoadRecord(ctx, studentID, jobID)
	if err != nil {
		return Decision{}, err
	}
	posting, err := c.catalog.GetPosting(ctx, jobID)
	if err != nil {
		return Decision{}, err
	}

	now := c.now()
	decision := Decide(record, posting, now, c.policy)
	if !decision.Send {
		metrics.OutreachDecisions.WithLabelValues("skip", string(decision.Reason)).Inc()
		c.logger.Info("outreach skipped", map[string]interface{}{
			"studentId": studentID,
			"jobId":     jobID,
			"reason":    string(decision.Reason),
		})
		return decision, nil
	}

	// Persist the pending attempt first.
	record.OutreachAttempts = append(record.OutreachAttempts, models.OutreachAttempt{
		RequestedAt: now,
		Outcome:     models.OutreachPending,
	})
	if err := c.save(ctx, record); err != nil {
		return Decision{}, err
	}

	subject, body := composeEmail(record, posting)
	workID, err := c.orchestrator.SendOutreachEmail(ctx, orchestrator.OutreachEmailRequest{
		RecordID:  record.ID,
		StudentID: studentID,
		JobID:     jobID,
		HRName:    posting.HRContact.Name,
		HREmail:   posting.HRContact.Email,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		// The attempt stays recorded; finalize it as failed.
		c.finalizeLastAttempt(record, models.OutreachFailed, err.Error())
		if saveErr := c.save(ctx, record); saveErr != nil {
			return Decision{}, saveErr
		}
		return Decision{}, err
	}

	record.OutreachAttempts[len(record.OutreachAttempts)-1].WorkID = workID
	if err := c.save(ctx, record); err != nil {
		return Decision{}, err
	}

	metrics.OutreachDecisions.WithLabelValues("send", "").Inc()
	c.logger.Info("outreach email requested", map[string]interface{}{
		"studentId": studentID,
		"jobId":     jobID,
		"workId":    workID,
		"attempt":   record.OutreachAttemptCount(),
	})
	return decision, nil
}

// OnOutreachResult finalizes the pending attempt once the execution layer
// reports delivery. Late callbacks on terminal records or unknown work ids
// are logged and swallowed.
func (c *Coordinator) OnOutreachResult(ctx context.Context, studentID, jobID, workID string, success bool, reason string) error {
	lock := c.pairLock(studentID, jobID)
	lock.Lock()
	defer lock.Unlock()

	record, err := c.store.LoadRecord(ctx, studentID, jobID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			metrics.CallbacksDropped.WithLabelValues("unknown-record").Inc()
			c.logger.Warn("outreach callback for unknown record", map[string]interface{}{
				"workId": workID,
			})
			return nil
		}
		return err
	}

	attempt := findAttempt(record, workID)
	if attempt == nil || attempt.Outcome != models.OutreachPending {
		metrics.CallbacksDropped.WithLabelValues("terminal-or-stale").Inc()
		c.logger.Warn("outreach callback dropped", map[string]interface{}{
			"workId": workID,
			"state":  string(record.State),
			"code":   string(errors.ErrCodeCallbackAfterTerminal),
		})
		return nil
	}

	completedAt := c.now()
	attempt.CompletedAt = &completedAt
	if success {
		attempt.Outcome = models.OutreachSent
		attempt.Reason = ""
	} else {
		attempt.Outcome = models.OutreachFailed
		attempt.Reason = reason
	}

	if err := c.save(ctx, record); err != nil {
		return err
	}

	c.logger.Info("outreach attempt finalized", map[string]interface{}{
		"studentId": studentID,
		"jobId":     jobID,
		"workId":    workID,
		"outcome":   string(attempt.Outcome),
	})
	return nil
}

func (c *Coordinator) finalizeLastAttempt(record *models.ApplicationRecord, outcome models.OutreachOutcome, reason string) {
	if len(record.OutreachAttempts) == 0 {
		return
	}
	attempt := &record.OutreachAttempts[len(record.OutreachAttempts)-1]
	completedAt := c.now()
	attempt.CompletedAt = &completedAt
	attempt.Outcome = outcome
	attempt.Reason = reason
}

func findAttempt(record *models.ApplicationRecord, workID string) *models.OutreachAttempt {
	for i := range record.OutreachAttempts {
		if record.OutreachAttempts[i].WorkID == workID {
			return &record.OutreachAttempts[i]
		}
	}
	return nil
}

// save persists the record, surfacing version conflicts the same way the
// state machine does: a conflict means another writer committed since our
// load, and re-saving the stale snapshot would revert that write (a
// WITHDRAWN transition, a fresh attempt). The caller's retry re-runs the
// decision against the current record.
func (c *Coordinator) save(ctx context.Context, record *models.ApplicationRecord) error {
	err := c.store.SaveRecord(ctx, record)
	if errors.IsCode(err, errors.ErrCodeVersionConflict) {
		c.logger.Warn("version conflict, discarding stale write", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"version":   record.Version,
		})
	}
	return err
}

func composeEmail(record *models.ApplicationRecord, posting *models.JobPosting) (subject, body string) {
	subject = fmt.Sprintf("Application follow-up: %s at %s", posting.Title, posting.Company)
	greeting := "Hello"
	if posting.HRContact != nil && posting.HRContact.Name != "" {
		greeting = "Hello " + posting.HRContact.Name
	}
	body = fmt.Sprintf(
		"%s,\n\nI recently submitted my application for the %s position at %s "+
			"and wanted to follow up. I would appreciate any update on its status.\n\n"+
			"Application reference: %s\n\nThank you for your time.",
		greeting, posting.Title, posting.Company, record.ID,
	)
	return subject, body
}
