package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-workers/internal/models"
)

func testProfile(t *testing.T) *models.StudentProfile {
	t.Helper()
	profile, err := models.NewStudentProfile(
		"student-1",
		[]string{"Python", "SQL"},
		[]string{"Berlin", "Munich"},
		50000,
		"resumes/student-1.pdf",
	)
	require.NoError(t, err)
	return profile
}

func testPosting(t *testing.T, id string, required []string, location string, band models.SalaryBand) models.JobPosting {
	t.Helper()
	posting, err := models.NewJobPosting(id, "Engineer", "Acme", required, location, band, nil)
	require.NoError(t, err)
	return *posting
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights, false},
		{"custom valid", Weights{Skill: 0.5, Location: 0.3, Salary: 0.2}, false},
		{"sum below one", Weights{Skill: 0.5, Location: 0.2, Salary: 0.2}, true},
		{"sum above one", Weights{Skill: 0.7, Location: 0.25, Salary: 0.15}, true},
		{"negative weight", Weights{Skill: 1.2, Location: -0.1, Salary: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEngineRejectsBadWeights(t *testing.T) {
	_, err := NewEngine(Weights{Skill: 0.9, Location: 0.05, Salary: 0.01})
	assert.Error(t, err)
}

func TestScoreWorkedExample(t *testing.T) {
	// skills {python, sql} vs required {python, sql, docker}: skill 2/3.
	// Location matches at rank 0 and salary is satisfied, so the total is
	// 0.6*(2/3) + 0.25*1.0 + 0.15*1.0 = 0.65.
	engine, err := NewEngine(DefaultWeights)
	require.NoError(t, err)

	profile := testProfile(t)
	posting := testPosting(t, "job-1", []string{"python", "sql", "docker"}, "Berlin",
		models.SalaryBand{Min: 45000, Max: 60000})

	score := engine.Score(profile, &posting)

	assert.InDelta(t, 2.0/3.0, score.SkillComponent, 1e-9)
	assert.InDelta(t, 1.0, score.LocationComponent, 1e-9)
	assert.InDelta(t, 1.0, score.SalaryComponent, 1e-9)
	assert.InDelta(t, 0.65, score.Total, 1e-9)
}

func TestScoreComponents(t *testing.T) {
	engine, err := NewEngine(DefaultWeights)
	require.NoError(t, err)
	profile := testProfile(t)

	t.Run("empty required skills scores full skill component", func(t *testing.T) {
		posting := testPosting(t, "job-open", nil, "Berlin", models.SalaryBand{Min: 50000, Max: 70000})
		score := engine.Score(profile, &posting)
		assert.Equal(t, 1.0, score.SkillComponent)
	})

	t.Run("second preference location scores half", func(t *testing.T) {
		posting := testPosting(t, "job-muc", []string{"python"}, "Munich", models.SalaryBand{Min: 50000, Max: 70000})
		score := engine.Score(profile, &posting)
		assert.InDelta(t, 0.5, score.LocationComponent, 1e-9)
	})

	t.Run("unpreferred location scores zero", func(t *testing.T) {
		posting := testPosting(t, "job-hh", []string{"python"}, "Hamburg", models.SalaryBand{Min: 50000, Max: 70000})
		score := engine.Score(profile, &posting)
		assert.Equal(t, 0.0, score.LocationComponent)
	})

	t.Run("salary shortfall applies linear penalty", func(t *testing.T) {
		// floor 50000, band max 40000: 1 - (50000-40000)/50000 = 0.8
		posting := testPosting(t, "job-low", []string{"python"}, "Berlin", models.SalaryBand{Min: 30000, Max: 40000})
		score := engine.Score(profile, &posting)
		assert.InDelta(t, 0.8, score.SalaryComponent, 1e-9)
	})

	t.Run("salary penalty floors at zero", func(t *testing.T) {
		posting := testPosting(t, "job-zero", []string{"python"}, "Berlin", models.SalaryBand{Min: 0, Max: 0})
		score := engine.Score(profile, &posting)
		assert.Equal(t, 0.0, score.SalaryComponent)
	})

	t.Run("zero salary floor is always satisfied", func(t *testing.T) {
		noFloor, err := models.NewStudentProfile("student-2", []string{"python"}, []string{"Berlin"}, 0, "")
		require.NoError(t, err)
		posting := testPosting(t, "job-any", []string{"python"}, "Berlin", models.SalaryBand{Min: 0, Max: 0})
		score := engine.Score(noFloor, &posting)
		assert.Equal(t, 1.0, score.SalaryComponent)
	})
}

func TestRankIsDeterministic(t *testing.T) {
	engine, err := NewEngine(DefaultWeights)
	require.NoError(t, err)
	profile := testProfile(t)

	postings := []models.JobPosting{
		testPosting(t, "job-c", []string{"python", "sql", "docker"}, "Berlin", models.SalaryBand{Min: 45000, Max: 60000}),
		testPosting(t, "job-a", []string{"python", "sql"}, "Berlin", models.SalaryBand{Min: 50000, Max: 70000}),
		testPosting(t, "job-b", []string{"go"}, "Hamburg", models.SalaryBand{Min: 30000, Max: 40000}),
	}

	first := engine.Rank(profile, postings)
	second := engine.Rank(profile, postings)

	require.Equal(t, len(postings), len(first))
	assert.Equal(t, first, second)

	assert.Equal(t, "job-a", first[0].Posting.ID)
	assert.Equal(t, "job-c", first[1].Posting.ID)
	assert.Equal(t, "job-b", first[2].Posting.ID)

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score.Total, first[i].Score.Total)
	}
}

func TestRankBreaksTiesByPostingID(t *testing.T) {
	engine, err := NewEngine(DefaultWeights)
	require.NoError(t, err)
	profile := testProfile(t)

	band := models.SalaryBand{Min: 50000, Max: 70000}
	postings := []models.JobPosting{
		testPosting(t, "job-z", []string{"python", "sql"}, "Berlin", band),
		testPosting(t, "job-a", []string{"python", "sql"}, "Berlin", band),
		testPosting(t, "job-m", []string{"python", "sql"}, "Berlin", band),
	}

	ranked := engine.Rank(profile, postings)

	assert.Equal(t, "job-a", ranked[0].Posting.ID)
	assert.Equal(t, "job-m", ranked[1].Posting.ID)
	assert.Equal(t, "job-z", ranked[2].Posting.ID)
}
