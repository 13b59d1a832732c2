// internal/workers/application/notify-status/config.go
package notifystatus

import "time"

type Config struct {
	Timeout   time.Duration
	FromEmail string
}

func LoadConfig(fromEmail string) *Config {
	return &Config{
		Timeout:   30 * time.Second,
		FromEmail: fromEmail,
	}
}
