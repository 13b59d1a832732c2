// internal/workers/application/apply-to-job/models.go
package applytojob

type Input struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
}

type Output struct {
	RecordID     string `json:"recordId"`
	StudentID    string `json:"studentId"`
	JobID        string `json:"jobId"`
	State        string `json:"state"`
	AttemptCount int    `json:"attemptCount"`
}
