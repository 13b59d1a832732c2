// internal/workers/outreach/send-outreach/config.go
package sendoutreach

import "time"

type Config struct {
	Timeout   time.Duration
	FromEmail string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	UseTLS       bool
}

func LoadConfig(fromEmail string) *Config {
	return &Config{
		Timeout:   60 * time.Second,
		FromEmail: fromEmail,
	}
}
