// internal/workers/recommendation/rank-jobs/handler_test.go
package rankjobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/internal/catalog"
	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
	"jobmatch-workers/internal/scoring"
)

// ==========================
// Test fakes
// ==========================

type fakeProfiles struct {
	profiles map[string]*models.StudentProfile
}

func (f *fakeProfiles) GetProfile(_ context.Context, studentID string) (*models.StudentProfile, error) {
	p, ok := f.profiles[studentID]
	if !ok {
		return nil, errors.NewNotFoundError("student profile", studentID)
	}
	return p, nil
}

type fakeCatalog struct {
	postings []models.JobPosting
}

func (f *fakeCatalog) ListPostings(_ context.Context, _ catalog.Filter) ([]models.JobPosting, error) {
	return f.postings, nil
}

func (f *fakeCatalog) GetPosting(_ context.Context, jobID string) (*models.JobPosting, error) {
	for i := range f.postings {
		if f.postings[i].ID == jobID {
			return &f.postings[i], nil
		}
	}
	return nil, errors.NewNotFoundError("job posting", jobID)
}

func newTestHandler(t *testing.T, profiles *fakeProfiles, cat *fakeCatalog, cache *redis.Client) *Handler {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.DefaultWeights)
	require.NoError(t, err)
	return NewHandler(LoadConfig(), engine, profiles, cat, cache, logger.NewTestLogger(t))
}

func testPostings(t *testing.T) []models.JobPosting {
	t.Helper()
	strong, err := models.NewJobPosting("job-strong", "Backend Engineer", "Acme",
		[]string{"python", "sql"}, "Berlin",
		models.SalaryBand{Min: 50000, Max: 70000}, nil)
	require.NoError(t, err)
	weak, err := models.NewJobPosting("job-weak", "Frontend Engineer", "Globex",
		[]string{"react", "css"}, "Madrid",
		models.SalaryBand{Min: 30000, Max: 40000}, nil)
	require.NoError(t, err)
	return []models.JobPosting{*weak, *strong}
}

// ==========================
// Execute
// ==========================

func TestExecuteRanksPostings(t *testing.T) {
	profile, err := models.NewStudentProfile("student-1",
		[]string{"python", "sql"}, []string{"Berlin"}, 55000, "resume-1")
	require.NoError(t, err)

	handler := newTestHandler(t,
		&fakeProfiles{profiles: map[string]*models.StudentProfile{"student-1": profile}},
		&fakeCatalog{postings: testPostings(t)},
		nil,
	)

	output, err := handler.Execute(context.Background(), &Input{StudentID: "student-1"})
	require.NoError(t, err)

	require.Equal(t, 2, output.Count)
	assert.Equal(t, "job-strong", output.RankedJobs[0].JobID, "best match first")
	assert.Equal(t, "job-weak", output.RankedJobs[1].JobID)
	assert.Greater(t, output.RankedJobs[0].Total, output.RankedJobs[1].Total)
	assert.Equal(t, "student-1", output.StudentID)
	assert.NotEmpty(t, output.RankedAt)
}

func TestExecuteMissingStudentID(t *testing.T) {
	handler := newTestHandler(t, &fakeProfiles{}, &fakeCatalog{}, nil)

	_, err := handler.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
}

func TestExecuteUnknownStudent(t *testing.T) {
	handler := newTestHandler(t,
		&fakeProfiles{profiles: map[string]*models.StudentProfile{}},
		&fakeCatalog{postings: testPostings(t)},
		nil,
	)

	_, err := handler.Execute(context.Background(), &Input{StudentID: "ghost"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestExecuteCachesRanking(t *testing.T) {
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})

	profile, err := models.NewStudentProfile("student-1",
		[]string{"python"}, nil, 0, "")
	require.NoError(t, err)

	handler := newTestHandler(t,
		&fakeProfiles{profiles: map[string]*models.StudentProfile{"student-1": profile}},
		&fakeCatalog{postings: testPostings(t)},
		cache,
	)

	output, err := handler.Execute(context.Background(), &Input{StudentID: "student-1"})
	require.NoError(t, err)

	raw, err := server.Get("ranking:student-1")
	require.NoError(t, err)
	var cached Output
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, output.Count, cached.Count)
	assert.Equal(t, output.RankedJobs[0].JobID, cached.RankedJobs[0].JobID)
}

func TestExecuteCacheDownIsAdvisory(t *testing.T) {
	// A closed cache must not break ranking.
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()

	profile, err := models.NewStudentProfile("student-1",
		[]string{"python"}, nil, 0, "")
	require.NoError(t, err)

	handler := newTestHandler(t,
		&fakeProfiles{profiles: map[string]*models.StudentProfile{"student-1": profile}},
		&fakeCatalog{postings: testPostings(t)},
		cache,
	)

	output, err := handler.Execute(context.Background(), &Input{StudentID: "student-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, output.Count)
}
