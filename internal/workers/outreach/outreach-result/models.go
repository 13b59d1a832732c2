// internal/workers/outreach/outreach-result/models.go
package outreachresult

type Input struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	WorkID    string `json:"workId"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

type Output struct {
	WorkID    string `json:"workId"`
	Processed bool   `json:"processed"`
}
