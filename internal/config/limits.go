package config

import "time"

type Limits struct {
	MaxRetries        int             `yaml:"max_retries" validate:"min=0,max=10"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	AutosaveDelay     time.Duration   `yaml:"autosave_delay" validate:"min=10ms,max=1m"`
	ContinuationChars int             `yaml:"continuation_chars" validate:"min=0,max=20000"`
	OutcomeCount      int             `yaml:"outcome_count" validate:"min=1,max=10"`
	MaxChapters       int             `yaml:"max_chapters" validate:"min=1,max=200"`
	PersistOutcomes   bool            `yaml:"persist_outcomes"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRetries:        3,
		AutosaveDelay:     2 * time.Second,
		ContinuationChars: 1500,
		OutcomeCount:      3,
		MaxChapters:       100,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}

// fill replaces zero values with defaults so a partial file still validates.
func (l *Limits) fill() {
	d := DefaultLimits()
	if l.AutosaveDelay == 0 {
		l.AutosaveDelay = d.AutosaveDelay
	}
	if l.ContinuationChars == 0 {
		l.ContinuationChars = d.ContinuationChars
	}
	if l.OutcomeCount == 0 {
		l.OutcomeCount = d.OutcomeCount
	}
	if l.MaxChapters == 0 {
		l.MaxChapters = d.MaxChapters
	}
	if l.RateLimit == (RateLimitConfig{}) {
		l.RateLimit = d.RateLimit
	}
	if l.RateLimit.BurstSize == 0 {
		l.RateLimit.BurstSize = 1
	}
}
