// internal/workers/recommendation/rank-jobs/models.go
package rankjobs

type Input struct {
	StudentID string `json:"studentId"`
	Query     string `json:"query,omitempty"`
	Location  string `json:"location,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type RankedJob struct {
	JobID             string  `json:"jobId"`
	Title             string  `json:"title"`
	Company           string  `json:"company"`
	Total             float64 `json:"total"`
	SkillComponent    float64 `json:"skillComponent"`
	LocationComponent float64 `json:"locationComponent"`
	SalaryComponent   float64 `json:"salaryComponent"`
}

type Output struct {
	StudentID  string      `json:"studentId"`
	RankedJobs []RankedJob `json:"rankedJobs"`
	Count      int         `json:"count"`
	RankedAt   string      `json:"rankedAt"` // ISO 8601
}
