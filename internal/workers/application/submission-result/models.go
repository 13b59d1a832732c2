// internal/workers/application/submission-result/models.go
package submissionresult

type Input struct {
	WorkID  string `json:"workId"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type Output struct {
	WorkID    string `json:"workId"`
	Processed bool   `json:"processed"`
}
