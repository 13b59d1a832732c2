// internal/workers/outreach/contact-hr/models.go
package contacthr

type Input struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
}

type Output struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
	Sent      bool   `json:"sent"`
	Reason    string `json:"reason,omitempty"`
}
