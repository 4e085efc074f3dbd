// Package broker is the at-least-once work queue between the Dispatcher and
// the Runner pool: two JetStream streams (AGENT_TASKS, TRAINING_JOBS), NACK
// + redelivery on handler error, dead-letter after the bounded retry count.
package broker

import (
	"context"
	"time"
)

// Subjects used by the two streams this platform runs, per spec.md §4.3.
const (
	SubjectAgentTask  = "agent.task"
	SubjectTrainingJob = "training.job"

	StreamAgentTasks   = "AGENT_TASKS"
	StreamTrainingJobs = "TRAINING_JOBS"
)

// TaskMessage is the envelope published for every dispatched Task, carrying
// the carrier fields spec.md §4.3 requires for the Runner to pick the task
// back up without a separate Store round trip.
type TaskMessage struct {
	ProjectID      string `json:"project_id"`
	AgentID        string `json:"agent_id"`
	TaskID         string `json:"task_id"`
	RelatedTaskID  string `json:"related_task_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// TrainingMessage is the envelope published for a queued Training job.
type TrainingMessage struct {
	ProjectID  string `json:"project_id"`
	TrainingID string `json:"training_id"`
}

// Delivery wraps one received message with the ack/nak handle the consumer
// uses to report outcome back to the broker.
type Delivery[T any] struct {
	Payload T
	// Attempt is the 1-indexed redelivery count, for logging and for the
	// dead-letter decision the broker itself makes once MaxDeliver is hit.
	Attempt int

	ack  func() error
	nak  func(delay time.Duration) error
	term func() error
}

// Ack acknowledges successful processing; the message will not be redelivered.
func (d *Delivery[T]) Ack() error { return d.ack() }

// Nak requests redelivery after delay (0 means immediate), consuming one
// attempt of MaxDeliver.
func (d *Delivery[T]) Nak(delay time.Duration) error { return d.nak(delay) }

// Term terminates the message permanently (no further redelivery), used
// when a handler recognizes the failure as non-retryable.
func (d *Delivery[T]) Term() error { return d.term() }

// Broker is the narrow publish/consume surface every other component
// depends on. Two concrete implementations: NATS (JetStream-backed) and
// Memory (an in-process fake for tests).
type Broker interface {
	PublishTask(ctx context.Context, msg TaskMessage) error
	PublishTraining(ctx context.Context, msg TrainingMessage) error

	// ConsumeTasks fetches up to max pending task deliveries, waiting up to
	// wait for at least one. An empty slice with a nil error means no
	// messages were available within wait.
	ConsumeTasks(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TaskMessage], error)
	ConsumeTrainings(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TrainingMessage], error)

	Close() error
}
