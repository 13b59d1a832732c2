// Package scoring computes match scores between student profiles and job
// postings and produces deterministic rankings. All functions are pure:
// scores depend only on their inputs and the configured weights, so a
// ranking run can be repeated or restarted at any time.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"jobmatch-workers/internal/common/config"
	"jobmatch-workers/internal/models"
)

// Weights are the component weights of the total match score.
// They must be non-negative and sum to 1.0.
type Weights struct {
	Skill    float64
	Location float64
	Salary   float64
}

// DefaultWeights mirror the configuration defaults.
var DefaultWeights = Weights{Skill: 0.6, Location: 0.25, Salary: 0.15}

// WeightsFromConfig extracts weights from the scoring config section.
func WeightsFromConfig(cfg config.ScoringConfig) Weights {
	return Weights{
		Skill:    cfg.SkillWeight,
		Location: cfg.LocationWeight,
		Salary:   cfg.SalaryWeight,
	}
}

// Validate rejects negative weights and weight sets that do not sum to 1.0.
func (w Weights) Validate() error {
	if w.Skill < 0 || w.Location < 0 || w.Salary < 0 {
		return fmt.Errorf("scoring weights must be non-negative: %+v", w)
	}
	sum := w.Skill + w.Location + w.Salary
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Engine scores and ranks postings for a profile.
type Engine struct {
	weights Weights
}

// NewEngine creates an Engine, validating the weights.
func NewEngine(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Score computes the match score for one (profile, posting) pair.
func (e *Engine) Score(profile *models.StudentProfile, posting *models.JobPosting) models.MatchScore {
	skill := skillComponent(profile.Skills, posting.RequiredSkills)
	location := locationComponent(profile, posting.Location)
	salary := salaryComponent(profile.SalaryFloor, posting.SalaryBand)

	total := e.weights.Skill*skill + e.weights.Location*location + e.weights.Salary*salary

	return models.MatchScore{
		StudentID:         profile.ID,
		JobID:             posting.ID,
		Total:             clamp01(total),
		SkillComponent:    skill,
		LocationComponent: location,
		SalaryComponent:   salary,
	}
}

// RankedPosting pairs a posting with its computed score.
type RankedPosting struct {
	Posting models.JobPosting `json:"posting"`
	Score   models.MatchScore `json:"score"`
}

// Rank scores every posting and returns them in descending total order.
// Ties break by posting id ascending so the ordering is fully deterministic.
func (e *Engine) Rank(profile *models.StudentProfile, postings []models.JobPosting) []RankedPosting {
	ranked := make([]RankedPosting, 0, len(postings))
	for i := range postings {
		ranked = append(ranked, RankedPosting{
			Posting: postings[i],
			Score:   e.Score(profile, &postings[i]),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Posting.ID < ranked[j].Posting.ID
	})

	return ranked
}

// skillComponent is the overlap fraction |profile ∩ required| / |required|.
// A posting with no required skills matches everyone.
func skillComponent(profileSkills, requiredSkills []string) float64 {
	if len(requiredSkills) == 0 {
		return 1.0
	}

	have := make(map[string]struct{}, len(profileSkills))
	for _, s := range profileSkills {
		have[s] = struct{}{}
	}

	matched := 0
	for _, s := range requiredSkills {
		if _, ok := have[s]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(requiredSkills))
}

// locationComponent is 1/(rank+1) when the posting location is preferred at
// that rank, 0 otherwise.
func locationComponent(profile *models.StudentProfile, location string) float64 {
	rank, ok := profile.LocationRank(location)
	if !ok {
		return 0
	}
	return 1.0 / float64(rank+1)
}

// salaryComponent is 1.0 when the band can satisfy the floor, otherwise a
// linear penalty proportional to the shortfall, floored at 0. A zero floor
// always counts as satisfied.
func salaryComponent(floor float64, band models.SalaryBand) float64 {
	if floor <= 0 || band.Max >= floor {
		return 1.0
	}
	penalty := 1.0 - (floor-band.Max)/floor
	if penalty < 0 {
		return 0
	}
	return penalty
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
