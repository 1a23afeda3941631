package schedule

import (
	"context"
	"time"
)

// Job is a named function run on a cron pattern.
type Job struct {
	Name    string
	Pattern string
	Run     func(ctx context.Context) error
}

// Entry describes a scheduled job.
type Entry struct {
	Name    string    `json:"name"`
	Pattern string    `json:"pattern"`
	Next    time.Time `json:"next"`
	Prev    time.Time `json:"prev,omitempty"`
}
