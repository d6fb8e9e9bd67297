package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeSyncFeed        TaskType = "sync_feed"
	TaskTypeGenerateSitemap TaskType = "generate_sitemap"
	TaskTypeSubmitSitemap   TaskType = "submit_sitemap"
)

const (
	DefaultMaxRetries = 3
)

// RetryPolicy bounds how often and how fast a failed task is retried.
// Delays double per attempt, starting at BaseDelay and capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Delay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}

// Feeds recover in seconds, a generation retry only helps against
// transient repository errors, and search engines throttle pings for
// minutes.
var retryPolicies = map[TaskType]RetryPolicy{
	TaskTypeSyncFeed:        {MaxRetries: DefaultMaxRetries, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	TaskTypeGenerateSitemap: {MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	TaskTypeSubmitSitemap:   {MaxRetries: 4, BaseDelay: 15 * time.Second, MaxDelay: 5 * time.Minute},
}

func PolicyFor(taskType TaskType) RetryPolicy {
	if p, ok := retryPolicies[taskType]; ok {
		return p
	}
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	RetryDelay() time.Duration
	RecordFailure(err error)
	LastError() error
	Start()
	GetDuration() time.Duration
}

// Task carries the bookkeeping shared by sync, generate and submit work.
// Target is the feed URL, base URL or public sitemap URL respectively.
type Task struct {
	ID         string
	Type       TaskType
	Target     string
	RetryCount int
	Policy     RetryPolicy
	StartedAt  *time.Time
	lastErr    error
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.Policy.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.Policy.MaxRetries
}

// RetryDelay is the backoff before the current retry attempt.
func (t *Task) RetryDelay() time.Duration {
	return t.Policy.Delay(t.RetryCount)
}

func (t *Task) RecordFailure(err error) {
	t.lastErr = err
}

func (t *Task) LastError() error {
	return t.lastErr
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Target: target,
		Policy: PolicyFor(taskType),
	}
}
