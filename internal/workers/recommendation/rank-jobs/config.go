// internal/workers/recommendation/rank-jobs/config.go
package rankjobs

import "time"

type Config struct {
	Timeout      time.Duration
	RankCacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		RankCacheTTL: 5 * time.Minute,
	}
}
