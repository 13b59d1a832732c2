package outreach

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/internal/catalog"
	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/lifecycle"
	"jobmatch-workers/internal/models"
	"jobmatch-workers/internal/orchestrator"
)

// --- test fakes ---

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*models.ApplicationRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*models.ApplicationRecord)}
}

func (s *memoryStore) key(studentID, jobID string) string { return studentID + "|" + jobID }

func (s *memoryStore) put(record *models.ApplicationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[s.key(record.StudentID, record.JobID)] = &cp
}

func (s *memoryStore) CreateRecord(_ context.Context, record *models.ApplicationRecord) error {
	s.put(record)
	return nil
}

func (s *memoryStore) LoadRecord(_ context.Context, studentID, jobID string) (*models.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[s.key(studentID, jobID)]
	if !ok {
		return nil, errors.NewNotFoundError("application record", studentID+"/"+jobID)
	}
	cp := *record
	cp.OutreachAttempts = append([]models.OutreachAttempt(nil), record.OutreachAttempts...)
	return &cp, nil
}

func (s *memoryStore) LoadByWorkID(_ context.Context, workID string) (*models.ApplicationRecord, error) {
	return nil, errors.NewNotFoundError("application record", workID)
}

func (s *memoryStore) SaveRecord(_ context.Context, record *models.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[s.key(record.StudentID, record.JobID)]
	if !ok {
		return errors.NewNotFoundError("application record", record.ID)
	}
	if current.Version != record.Version {
		return errors.NewVersionConflictError(record.StudentID, record.JobID, record.Version)
	}
	record.Version++
	cp := *record
	cp.OutreachAttempts = append([]models.OutreachAttempt(nil), record.OutreachAttempts...)
	s.records[s.key(record.StudentID, record.JobID)] = &cp
	return nil
}

func (s *memoryStore) ListStalePending(_ context.Context, _ time.Time) ([]models.ApplicationRecord, error) {
	return nil, nil
}

func (s *memoryStore) ListDueRetries(_ context.Context, _ time.Time) ([]models.ApplicationRecord, error) {
	return nil, nil
}

type fakeOrchestrator struct {
	requests []orchestrator.OutreachEmailRequest
	fail     bool
	n        int
}

func (f *fakeOrchestrator) SubmitApplication(_ context.Context, _ orchestrator.SubmitApplicationRequest) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeOrchestrator) SendOutreachEmail(_ context.Context, req orchestrator.OutreachEmailRequest) (string, error) {
	if f.fail {
		return "", errors.NewOrchestratorUnavailableError("send outreach", fmt.Errorf("broker down"))
	}
	f.n++
	f.requests = append(f.requests, req)
	return fmt.Sprintf("outreach-%d", f.n), nil
}

type fakeCatalog struct {
	postings map[string]*models.JobPosting
}

func (f *fakeCatalog) GetPosting(_ context.Context, jobID string) (*models.JobPosting, error) {
	p, ok := f.postings[jobID]
	if !ok {
		return nil, errors.NewNotFoundError("job posting", jobID)
	}
	return p, nil
}

func (f *fakeCatalog) ListPostings(_ context.Context, _ catalog.Filter) ([]models.JobPosting, error) {
	return nil, nil
}

// --- fixtures ---

func submittedRecord(t *testing.T) *models.ApplicationRecord {
	t.Helper()
	record, err := models.NewApplicationRecord("student-1", "job-1", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	record.State = models.StateSubmitted
	return record
}

func postingWithHR(t *testing.T) *models.JobPosting {
	t.Helper()
	posting, err := models.NewJobPosting("job-1", "Engineer", "Acme", []string{"python"}, "Berlin",
		models.SalaryBand{Min: 40000, Max: 60000},
		&models.HRContact{Name: "Dana", Email: "dana@acme.example"})
	require.NoError(t, err)
	return posting
}

func newTestCoordinator(t *testing.T, record *models.ApplicationRecord, posting *models.JobPosting) (*Coordinator, *memoryStore, *fakeOrchestrator) {
	t.Helper()
	store := newMemoryStore()
	store.put(record)
	orch := &fakeOrchestrator{}
	coord := NewCoordinator(
		store,
		&fakeCatalog{postings: map[string]*models.JobPosting{posting.ID: posting}},
		orch,
		lifecycle.NewPairLocks(),
		Policy{Cooldown: 7 * 24 * time.Hour, MaxAttempts: 2},
		logger.NewTestLogger(t),
	)
	return coord, store, orch
}

// interceptStore runs a hook once after a successful LoadRecord, simulating
// a writer on another node committing between a load and the following save.
type interceptStore struct {
	*memoryStore
	onLoad func()
}

func (s *interceptStore) LoadRecord(ctx context.Context, studentID, jobID string) (*models.ApplicationRecord, error) {
	record, err := s.memoryStore.LoadRecord(ctx, studentID, jobID)
	if err == nil && s.onLoad != nil {
		hook := s.onLoad
		s.onLoad = nil
		hook()
	}
	return record, err
}

// --- tests ---

func TestDecide(t *testing.T) {
	posting := postingWithHR(t)
	now := time.Now().UTC()
	policy := Policy{Cooldown: 7 * 24 * time.Hour, MaxAttempts: 2}

	t.Run("wrong state", func(t *testing.T) {
		record := submittedRecord(t)
		record.State = models.StatePendingSubmission
		decision := Decide(record, posting, now, policy)
		assert.False(t, decision.Send)
		assert.Equal(t, ReasonWrongState, decision.Reason)
	})

	t.Run("no contact", func(t *testing.T) {
		record := submittedRecord(t)
		bare, err := models.NewJobPosting("job-2", "Engineer", "Acme", nil, "Berlin",
			models.SalaryBand{Min: 1, Max: 2}, nil)
		require.NoError(t, err)
		decision := Decide(record, bare, now, policy)
		assert.Equal(t, ReasonNoContact, decision.Reason)
	})

	t.Run("first attempt sends", func(t *testing.T) {
		record := submittedRecord(t)
		decision := Decide(record, posting, now, policy)
		assert.True(t, decision.Send)
	})

	t.Run("cooldown active", func(t *testing.T) {
		// Second eligible attempt 3 days after the first, cooldown 7 days.
		record := submittedRecord(t)
		record.OutreachAttempts = []models.OutreachAttempt{
			{WorkID: "w-1", RequestedAt: now.Add(-3 * 24 * time.Hour), Outcome: models.OutreachSent},
		}
		decision := Decide(record, posting, now, policy)
		assert.False(t, decision.Send)
		assert.Equal(t, ReasonCooldownActive, decision.Reason)
	})

	t.Run("cooldown elapsed sends again", func(t *testing.T) {
		record := submittedRecord(t)
		record.OutreachAttempts = []models.OutreachAttempt{
			{WorkID: "w-1", RequestedAt: now.Add(-8 * 24 * time.Hour), Outcome: models.OutreachSent},
		}
		decision := Decide(record, posting, now, policy)
		assert.True(t, decision.Send)
	})

	t.Run("max attempts reached", func(t *testing.T) {
		record := submittedRecord(t)
		record.OutreachAttempts = []models.OutreachAttempt{
			{WorkID: "w-1", RequestedAt: now.Add(-30 * 24 * time.Hour), Outcome: models.OutreachSent},
			{WorkID: "w-2", RequestedAt: now.Add(-15 * 24 * time.Hour), Outcome: models.OutreachSent},
		}
		decision := Decide(record, posting, now, policy)
		assert.False(t, decision.Send)
		assert.Equal(t, ReasonMaxAttemptsReached, decision.Reason)
	})
}

func TestMaybeContactHRPersistsAttemptBeforeEmission(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, store, orch := newTestCoordinator(t, record, posting)

	decision, err := coord.MaybeContactHR(context.Background(), "student-1", "job-1")
	require.NoError(t, err)
	assert.True(t, decision.Send)

	require.Len(t, orch.requests, 1)
	assert.Equal(t, "dana@acme.example", orch.requests[0].HREmail)
	assert.Contains(t, orch.requests[0].Subject, "Engineer at Acme")

	saved, err := store.LoadRecord(context.Background(), "student-1", "job-1")
	require.NoError(t, err)
	require.Len(t, saved.OutreachAttempts, 1)
	assert.Equal(t, models.OutreachPending, saved.OutreachAttempts[0].Outcome)
	assert.Equal(t, "outreach-1", saved.OutreachAttempts[0].WorkID)
}

func TestMaybeContactHREmissionFailureKeepsAttempt(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, store, orch := newTestCoordinator(t, record, posting)
	orch.fail = true

	_, err := coord.MaybeContactHR(context.Background(), "student-1", "job-1")
	require.Error(t, err)

	saved, err := store.LoadRecord(context.Background(), "student-1", "job-1")
	require.NoError(t, err)
	require.Len(t, saved.OutreachAttempts, 1, "the attempt must not be lost")
	assert.Equal(t, models.OutreachFailed, saved.OutreachAttempts[0].Outcome)
}

func TestSecondSendWithinCooldownSkips(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, _, orch := newTestCoordinator(t, record, posting)
	ctx := context.Background()

	first, err := coord.MaybeContactHR(ctx, "student-1", "job-1")
	require.NoError(t, err)
	require.True(t, first.Send)

	second, err := coord.MaybeContactHR(ctx, "student-1", "job-1")
	require.NoError(t, err)
	assert.False(t, second.Send)
	assert.Equal(t, ReasonCooldownActive, second.Reason)
	assert.Len(t, orch.requests, 1)
}

func TestOnOutreachResultFinalizesAttempt(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, store, _ := newTestCoordinator(t, record, posting)
	ctx := context.Background()

	_, err := coord.MaybeContactHR(ctx, "student-1", "job-1")
	require.NoError(t, err)

	err = coord.OnOutreachResult(ctx, "student-1", "job-1", "outreach-1", true, "")
	require.NoError(t, err)

	saved, err := store.LoadRecord(ctx, "student-1", "job-1")
	require.NoError(t, err)
	require.Len(t, saved.OutreachAttempts, 1)
	assert.Equal(t, models.OutreachSent, saved.OutreachAttempts[0].Outcome)
	assert.NotNil(t, saved.OutreachAttempts[0].CompletedAt)
}

func TestOnOutreachResultUnknownWorkIDSwallowed(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, _, _ := newTestCoordinator(t, record, posting)

	err := coord.OnOutreachResult(context.Background(), "student-1", "job-1", "never-issued", false, "bounce")
	assert.NoError(t, err)
}

func TestOnOutreachResultDuplicateCallbackSwallowed(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	coord, store, _ := newTestCoordinator(t, record, posting)
	ctx := context.Background()

	_, err := coord.MaybeContactHR(ctx, "student-1", "job-1")
	require.NoError(t, err)

	require.NoError(t, coord.OnOutreachResult(ctx, "student-1", "job-1", "outreach-1", false, "bounce"))
	require.NoError(t, coord.OnOutreachResult(ctx, "student-1", "job-1", "outreach-1", true, ""))

	saved, err := store.LoadRecord(ctx, "student-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutreachFailed, saved.OutreachAttempts[0].Outcome, "first result wins")
}

func TestConflictDoesNotRevertCommittedWithdrawal(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	store := newMemoryStore()
	store.put(record)
	ctx := context.Background()

	// A withdrawal commits on another node between the coordinator's load
	// and its save.
	wrapped := &interceptStore{memoryStore: store}
	wrapped.onLoad = func() {
		current, err := store.LoadRecord(ctx, "student-1", "job-1")
		require.NoError(t, err)
		current.State = models.StateWithdrawn
		require.NoError(t, store.SaveRecord(ctx, current))
	}

	orch := &fakeOrchestrator{}
	coord := NewCoordinator(
		wrapped,
		&fakeCatalog{postings: map[string]*models.JobPosting{posting.ID: posting}},
		orch,
		lifecycle.NewPairLocks(),
		Policy{Cooldown: 7 * 24 * time.Hour, MaxAttempts: 2},
		logger.NewTestLogger(t),
	)

	_, err := coord.MaybeContactHR(ctx, "student-1", "job-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVersionConflict))

	saved, err := store.LoadRecord(ctx, "student-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateWithdrawn, saved.State, "a committed withdrawal must never be reverted")
	assert.Empty(t, saved.OutreachAttempts)
	assert.Empty(t, orch.requests, "no work is emitted for a record that moved under us")
}

func TestSharedLocksSerializeWithdrawAndOutreach(t *testing.T) {
	record := submittedRecord(t)
	posting := postingWithHR(t)
	store := newMemoryStore()
	store.put(record)
	orch := &fakeOrchestrator{}
	cat := &fakeCatalog{postings: map[string]*models.JobPosting{posting.ID: posting}}
	ctx := context.Background()

	machine := lifecycle.NewMachine(store, nil, cat, orch, lifecycle.Policy{}, logger.NewTestLogger(t))
	coord := NewCoordinator(
		store, cat, orch, machine.Locks(),
		Policy{Cooldown: 7 * 24 * time.Hour, MaxAttempts: 2},
		logger.NewTestLogger(t),
	)

	var wg sync.WaitGroup
	var withdrawErr, outreachErr error
	var decision Decision
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, withdrawErr = machine.Withdraw(ctx, "student-1", "job-1")
	}()
	go func() {
		defer wg.Done()
		decision, outreachErr = coord.MaybeContactHR(ctx, "student-1", "job-1")
	}()
	wg.Wait()

	assert.NoError(t, withdrawErr)
	assert.NoError(t, outreachErr, "the shared registry leaves no load/save window between the two")

	saved, err := store.LoadRecord(ctx, "student-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateWithdrawn, saved.State)

	// Whichever side ran first, the record stays consistent: outreach either
	// saw SUBMITTED and recorded its attempt, or saw WITHDRAWN and skipped.
	if decision.Send {
		assert.Len(t, saved.OutreachAttempts, 1)
	} else {
		assert.Equal(t, ReasonWrongState, decision.Reason)
		assert.Empty(t, saved.OutreachAttempts)
	}
}
