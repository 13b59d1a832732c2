// internal/workers/application/notify-status/models.go
package notifystatus

type Input struct {
	StudentEmail string `json:"studentEmail,omitempty"`
	StudentPhone string `json:"studentPhone,omitempty"`
	State        string `json:"state"`
	JobTitle     string `json:"jobTitle"`
	Company      string `json:"company"`
}

type Output struct {
	EmailSent      bool   `json:"emailSent"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SMSSent        bool   `json:"smsSent"`
	SMSMessageID   string `json:"smsMessageId,omitempty"`
}
