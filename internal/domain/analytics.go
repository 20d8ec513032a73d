package domain

import "time"

type AnalyticsConfig struct {
	Enabled   bool
	Retention time.Duration // counter TTL, must cover at least one day
}
