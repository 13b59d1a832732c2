package models

import (
	"fmt"
	"strings"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/validation"
)

// SalaryBand is the advertised annual salary range of a posting.
type SalaryBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// HRContact is the optional recruiter contact attached to a posting.
type HRContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// JobPosting is a job advertisement eligible for matching and application.
type JobPosting struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	RequiredSkills []string   `json:"requiredSkills"`
	Location       string     `json:"location"`
	SalaryBand     SalaryBand `json:"salaryBand"`
	HRContact      *HRContact `json:"hrContact,omitempty"`
}

// NewJobPosting validates and normalizes the inputs into a posting.
func NewJobPosting(id, title, company string, requiredSkills []string, location string, band SalaryBand, hr *HRContact) (*JobPosting, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationFailedError("job posting id must not be empty")
	}
	if band.Min < 0 || band.Max < 0 {
		return nil, errors.NewValidationFailedError("salary band must be non-negative")
	}
	if band.Min > band.Max {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("inverted salary band: min %v > max %v", band.Min, band.Max))
	}
	if hr != nil && !validation.ValidateEmail(hr.Email) {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("malformed HR contact email: %q", hr.Email))
	}

	normalized, err := NormalizeSkills(requiredSkills)
	if err != nil {
		return nil, err
	}

	return &JobPosting{
		ID:             id,
		Title:          title,
		Company:        company,
		RequiredSkills: normalized,
		Location:       strings.TrimSpace(location),
		SalaryBand:     band,
		HRContact:      hr,
	}, nil
}

// HasHRContact reports whether the posting carries a usable recruiter contact.
func (p *JobPosting) HasHRContact() bool {
	return p.HRContact != nil && p.HRContact.Email != ""
}

// MatchScore is the derived compatibility of a (student, job) pair.
// It is recomputable at any time and never a source of truth.
type MatchScore struct {
	StudentID         string  `json:"studentId"`
	JobID             string  `json:"jobId"`
	Total             float64 `json:"total"`
	SkillComponent    float64 `json:"skillComponent"`
	LocationComponent float64 `json:"locationComponent"`
	SalaryComponent   float64 `json:"salaryComponent"`
}
