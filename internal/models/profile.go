// Package models holds the shared domain model: student profiles, job
// postings, match scores and application records.
package models

import (
	"fmt"
	"sort"
	"strings"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/validation"
)

// StudentProfile is the matching-relevant snapshot of a student.
//
// Skills is a normalized set: lowercased, deduplicated, sorted. Preferred
// locations keep their order; index 0 is the most preferred.
type StudentProfile struct {
	ID                 string   `json:"id"`
	Skills             []string `json:"skills"`
	PreferredLocations []string `json:"preferredLocations"`
	SalaryFloor        float64  `json:"salaryFloor"`
	ResumeRef          string   `json:"resumeRef,omitempty"`
}

// NewStudentProfile validates and normalizes the inputs into a profile.
func NewStudentProfile(id string, skills, preferredLocations []string, salaryFloor float64, resumeRef string) (*StudentProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationFailedError("student profile id must not be empty")
	}
	if salaryFloor < 0 {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("salary floor must be >= 0, got %v", salaryFloor))
	}

	normalized, err := NormalizeSkills(skills)
	if err != nil {
		return nil, err
	}

	locations := make([]string, 0, len(preferredLocations))
	for _, loc := range preferredLocations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			return nil, errors.NewValidationFailedError("preferred location must not be empty")
		}
		locations = append(locations, loc)
	}

	return &StudentProfile{
		ID:                 id,
		Skills:             normalized,
		PreferredLocations: locations,
		SalaryFloor:        salaryFloor,
		ResumeRef:          resumeRef,
	}, nil
}

// NormalizeSkills lowercases, trims, deduplicates and sorts skill tags.
func NormalizeSkills(skills []string) ([]string, error) {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		tag := strings.ToLower(strings.TrimSpace(s))
		if tag == "" {
			return nil, errors.NewValidationFailedError("skill tag must not be empty")
		}
		if !validation.ValidateSkillTag(tag) {
			return nil, errors.NewValidationFailedError(fmt.Sprintf("malformed skill tag: %q", s))
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// LocationRank returns the 0-based preference rank of a location, or false
// when the location is not preferred. Matching is case-insensitive.
func (p *StudentProfile) LocationRank(location string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(location))
	for i, loc := range p.PreferredLocations {
		if strings.ToLower(loc) == needle {
			return i, true
		}
	}
	return 0, false
}
