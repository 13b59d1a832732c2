package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobmatch-workers/internal/catalog"
	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/models"
	"jobmatch-workers/internal/orchestrator"
	"jobmatch-workers/internal/profile"
)

// Policy is the retry and deadline policy of the state machine.
type Policy struct {
	MaxAttempts        int           // submission attempts before FAILED
	RetryBaseDelay     time.Duration // exponential backoff base
	SubmissionDeadline time.Duration // no callback within this window counts as a failure
}

// DefaultPolicy mirrors the configuration defaults.
var DefaultPolicy = Policy{
	MaxAttempts:        3,
	RetryBaseDelay:     time.Minute,
	SubmissionDeadline: 30 * time.Minute,
}

// Machine drives application records through their lifecycle. All writes to
// a (student, job) pair are serialized through a per-pair lock; cross-pair
// operations run fully in parallel.
type Machine struct {
	store        RecordStore
	profiles     profile.Store
	catalog      catalog.Catalog
	orchestrator orchestrator.TaskOrchestrator
	policy       Policy
	logger       logger.Logger
	now          func() time.Time
	locks        *PairLocks
}

func NewMachine(
	store RecordStore,
	profiles profile.Store,
	cat catalog.Catalog,
	orch orchestrator.TaskOrchestrator,
	policy Policy,
	log logger.Logger,
) *Machine {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.RetryBaseDelay <= 0 {
		policy.RetryBaseDelay = DefaultPolicy.RetryBaseDelay
	}
	if policy.SubmissionDeadline <= 0 {
		policy.SubmissionDeadline = DefaultPolicy.SubmissionDeadline
	}

	return &Machine{
		store:        store,
		profiles:     profiles,
		catalog:      cat,
		orchestrator: orch,
		policy:       policy,
		logger:       log.WithFields(map[string]interface{}{"component": "state-machine"}),
		now:          func() time.Time { return time.Now().UTC() },
		locks:        NewPairLocks(),
	}
}

// Locks exposes the pair-lock registry so every component mutating
// application records in this process serializes through it.
func (m *Machine) Locks() *PairLocks {
	return m.locks
}

// pairLock returns the mutex serializing transitions for a pair.
func (m *Machine) pairLock(studentID, jobID string) *sync.Mutex {
	return m.locks.Get(studentID, jobID)
}

// Apply creates (or returns) the application record for the pair and
// requests submission work. Re-applying is idempotent: any existing record,
// including a withdrawn one, is returned unchanged.
func (m *Machine) Apply(ctx context.Context, studentID, jobID string) (*models.ApplicationRecord, error) {
	lock := m.pairLock(studentID, jobID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.LoadRecord(ctx, studentID, jobID)
	if err == nil {
		m.logger.Info("apply is idempotent, returning existing record", map[string]interface{}{
			"studentId": studentID,
			"jobId":     jobID,
			"state":     string(existing.State),
		})
		return existing, nil
	}
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	profileSnapshot, err := m.profiles.GetProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if _, err := m.catalog.GetPosting(ctx, jobID); err != nil {
		return nil, err
	}

	record, err := models.NewApplicationRecord(studentID, jobID, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateRecord(ctx, record); err != nil {
		// Lost a create race despite the pair lock (e.g. another node).
		if errors.IsCode(err, errors.ErrCodeAlreadyExists) {
			return m.store.LoadRecord(ctx, studentID, jobID)
		}
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues("", string(models.StateCandidate)).Inc()

	if err := m.moveToPending(ctx, record); err != nil {
		return nil, err
	}

	workID, err := m.orchestrator.SubmitApplication(ctx, orchestrator.SubmitApplicationRequest{
		RecordID:  record.ID,
		StudentID: studentID,
		JobID:     jobID,
		ResumeRef: profileSnapshot.ResumeRef,
		Attempt:   1,
	})
	if err != nil {
		// The orchestrator already retried with backoff; give up on the record.
		return m.failRecord(ctx, record, err.Error())
	}

	record.SubmissionWorkID = workID
	record.AttemptCount = 1
	if err := m.save(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Withdraw cancels the application. Permitted from every state except
// WITHDRAWN itself. In-flight work may still complete; its callback is then
// swallowed.
func (m *Machine) Withdraw(ctx context.Context, studentID, jobID string) (*models.ApplicationRecord, error) {
	lock := m.pairLock(studentID, jobID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.store.LoadRecord(ctx, studentID, jobID)
	if err != nil {
		return nil, err
	}

	from := record.State
	if err := applyTransition(record, models.StateWithdrawn); err != nil {
		return nil, err
	}
	record.TransitionedAt = m.now()
	record.SubmissionWorkID = ""
	record.NextRetryAt = nil

	if err := m.save(ctx, record); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(from), string(models.StateWithdrawn)).Inc()
	m.logger.Info("application withdrawn", map[string]interface{}{
		"studentId": studentID,
		"jobId":     jobID,
		"from":      string(from),
	})
	return record, nil
}

// OnSubmissionResult handles the completion callback for a submission work
// request. Late or stale callbacks (terminal record, unknown or superseded
// work id) are logged and swallowed, never propagated.
func (m *Machine) OnSubmissionResult(ctx context.Context, workID string, success bool, reason string) error {
	located, err := m.store.LoadByWorkID(ctx, workID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			m.dropCallback(workID, "unknown-work-id")
			return nil
		}
		return err
	}

	lock := m.pairLock(located.StudentID, located.JobID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock; the record may have moved since the lookup.
	record, err := m.store.LoadRecord(ctx, located.StudentID, located.JobID)
	if err != nil {
		return err
	}

	if record.State != models.StatePendingSubmission || record.SubmissionWorkID != workID {
		m.dropCallback(workID, "terminal-or-stale")
		m.logger.Warn("callback after terminal or stale work id", map[string]interface{}{
			"workId": workID,
			"state":  string(record.State),
			"error":  errors.NewCallbackAfterTerminalError(workID, string(record.State)).Error(),
		})
		return nil
	}

	if success {
		if err := applyTransition(record, models.StateSubmitted); err != nil {
			return err
		}
		record.TransitionedAt = m.now()
		record.SubmissionWorkID = ""
		record.NextRetryAt = nil
		record.LastError = ""
		if err := m.save(ctx, record); err != nil {
			return err
		}

		metrics.ApplicationTransitions.WithLabelValues(
			string(models.StatePendingSubmission), string(models.StateSubmitted)).Inc()
		m.logger.Info("application submitted", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"workId":    workID,
		})
		return nil
	}

	return m.handleFailedAttempt(ctx, record, reason)
}

// handleFailedAttempt applies the retry policy after a failed callback (or a
// sweeper-detected deadline expiry). Callers hold the pair lock.
func (m *Machine) handleFailedAttempt(ctx context.Context, record *models.ApplicationRecord, reason string) error {
	record.LastError = reason
	record.SubmissionWorkID = ""

	if record.AttemptCount >= m.policy.MaxAttempts {
		if err := applyTransition(record, models.StateFailed); err != nil {
			return err
		}
		record.TransitionedAt = m.now()
		record.NextRetryAt = nil
		record.LastError = errors.NewSubmissionExhaustedError(record.AttemptCount, reason).Error()
		if err := m.save(ctx, record); err != nil {
			return err
		}

		metrics.ApplicationTransitions.WithLabelValues(
			string(models.StatePendingSubmission), string(models.StateFailed)).Inc()
		m.logger.Warn("submission retries exhausted", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"attempts":  record.AttemptCount,
			"reason":    reason,
		})
		return nil
	}

	// Schedule the next attempt with exponential backoff; the sweeper
	// re-emits once the delay elapses. The record stays PENDING_SUBMISSION.
	delay := m.policy.RetryBaseDelay * time.Duration(1<<(record.AttemptCount-1))
	next := m.now().Add(delay)
	record.NextRetryAt = &next
	record.TransitionedAt = m.now()

	if err := m.save(ctx, record); err != nil {
		return err
	}

	metrics.ApplicationTransitions.WithLabelValues(
		string(models.StatePendingSubmission), string(models.StatePendingSubmission)).Inc()
	m.logger.Info("submission attempt failed, retry scheduled", map[string]interface{}{
		"studentId":   record.StudentID,
		"jobId":       record.JobID,
		"attempt":     record.AttemptCount,
		"nextRetryAt": next.Format(time.RFC3339),
		"reason":      reason,
	})
	return nil
}

// Sweep expires pending submissions past the deadline and re-emits due
// retries. Per-pair failures are logged and never abort the sweep.
func (m *Machine) Sweep(ctx context.Context, now time.Time) {
	metrics.SweepsRun.Inc()

	cutoff := now.Add(-m.policy.SubmissionDeadline)
	stale, err := m.store.ListStalePending(ctx, cutoff)
	if err != nil {
		m.logger.Error("sweep: listing stale pending failed", map[string]interface{}{"error": err.Error()})
	} else {
		for i := range stale {
			m.expireStale(ctx, &stale[i], now)
		}
	}

	due, err := m.store.ListDueRetries(ctx, now)
	if err != nil {
		m.logger.Error("sweep: listing due retries failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for i := range due {
		m.emitRetry(ctx, &due[i], now)
	}
}

func (m *Machine) expireStale(ctx context.Context, located *models.ApplicationRecord, now time.Time) {
	lock := m.pairLock(located.StudentID, located.JobID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.store.LoadRecord(ctx, located.StudentID, located.JobID)
	if err != nil {
		m.logger.Error("sweep: reload failed", map[string]interface{}{
			"studentId": located.StudentID,
			"jobId":     located.JobID,
			"error":     err.Error(),
		})
		return
	}

	// Re-check under the lock: a callback may have landed meanwhile.
	if record.State != models.StatePendingSubmission || record.SubmissionWorkID == "" ||
		record.TransitionedAt.After(now.Add(-m.policy.SubmissionDeadline)) {
		return
	}

	metrics.SweepExpirations.Inc()
	reason := fmt.Sprintf("no callback within %s deadline", m.policy.SubmissionDeadline)
	if err := m.handleFailedAttempt(ctx, record, reason); err != nil {
		m.logger.Error("sweep: expiring record failed", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"error":     err.Error(),
		})
	}
}

func (m *Machine) emitRetry(ctx context.Context, located *models.ApplicationRecord, now time.Time) {
	lock := m.pairLock(located.StudentID, located.JobID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.store.LoadRecord(ctx, located.StudentID, located.JobID)
	if err != nil {
		m.logger.Error("sweep: reload failed", map[string]interface{}{
			"studentId": located.StudentID,
			"jobId":     located.JobID,
			"error":     err.Error(),
		})
		return
	}

	if record.State != models.StatePendingSubmission || record.SubmissionWorkID != "" ||
		record.NextRetryAt == nil || record.NextRetryAt.After(now) {
		return
	}

	attempt := record.AttemptCount + 1
	workID, err := m.orchestrator.SubmitApplication(ctx, orchestrator.SubmitApplicationRequest{
		RecordID:  record.ID,
		StudentID: record.StudentID,
		JobID:     record.JobID,
		Attempt:   attempt,
	})
	if err != nil {
		// The enqueue attempt itself consumed a try.
		record.AttemptCount = attempt
		if ferr := m.handleFailedAttempt(ctx, record, err.Error()); ferr != nil {
			m.logger.Error("sweep: recording enqueue failure failed", map[string]interface{}{
				"studentId": record.StudentID,
				"jobId":     record.JobID,
				"error":     ferr.Error(),
			})
		}
		return
	}

	record.AttemptCount = attempt
	record.SubmissionWorkID = workID
	record.NextRetryAt = nil
	record.TransitionedAt = m.now()
	if err := m.save(ctx, record); err != nil {
		m.logger.Error("sweep: saving retried record failed", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"error":     err.Error(),
		})
	}
}

func (m *Machine) moveToPending(ctx context.Context, record *models.ApplicationRecord) error {
	if err := applyTransition(record, models.StatePendingSubmission); err != nil {
		return err
	}
	record.TransitionedAt = m.now()
	if err := m.save(ctx, record); err != nil {
		return err
	}
	metrics.ApplicationTransitions.WithLabelValues(
		string(models.StateCandidate), string(models.StatePendingSubmission)).Inc()
	return nil
}

func (m *Machine) failRecord(ctx context.Context, record *models.ApplicationRecord, reason string) (*models.ApplicationRecord, error) {
	record.AttemptCount = m.policy.MaxAttempts
	if err := m.handleFailedAttempt(ctx, record, reason); err != nil {
		return nil, err
	}
	return record, nil
}

// save persists the record. A VERSION_CONFLICT means another writer (a node
// not sharing this process's pair locks) committed between our load and this
// save; the stale snapshot must not be re-saved, or a committed transition
// would silently revert. The conflict surfaces to the caller, whose retry
// starts over from a fresh load.
func (m *Machine) save(ctx context.Context, record *models.ApplicationRecord) error {
	err := m.store.SaveRecord(ctx, record)
	if errors.IsCode(err, errors.ErrCodeVersionConflict) {
		m.logger.Warn("version conflict, discarding stale write", map[string]interface{}{
			"studentId": record.StudentID,
			"jobId":     record.JobID,
			"version":   record.Version,
		})
	}
	return err
}

func (m *Machine) dropCallback(workID, reason string) {
	metrics.CallbacksDropped.WithLabelValues(reason).Inc()
	m.logger.Warn("callback dropped", map[string]interface{}{
		"workId": workID,
		"reason": reason,
	})
}
