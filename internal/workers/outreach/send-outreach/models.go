// internal/workers/outreach/send-outreach/models.go
package sendoutreach

type Input struct {
	WorkID    string `json:"workId"`
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	HRName    string `json:"hrName,omitempty"`
	HREmail   string `json:"hrEmail"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type Output struct {
	WorkID    string `json:"workId"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Provider  string `json:"provider"`
	Reason    string `json:"reason,omitempty"`
	SentAt    string `json:"sentAt"` // ISO 8601
}
