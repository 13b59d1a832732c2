// internal/workers/application/withdraw-application/models.go
package withdrawapplication

type Input struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
}

type Output struct {
	RecordID  string `json:"recordId"`
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	State     string `json:"state"`
}
