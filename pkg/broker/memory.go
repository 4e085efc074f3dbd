package broker

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Broker fake used by every other component's
// tests. It honors Ack/Nak/MaxDeliver semantics closely enough to exercise
// retry and dead-letter logic without a live NATS server.
type Memory struct {
	mu         sync.Mutex
	tasks      []memDelivery[TaskMessage]
	trainings  []memDelivery[TrainingMessage]
	deadTasks  []TaskMessage
	deadTrains []TrainingMessage
}

type memDelivery[T any] struct {
	payload T
	attempt int
}

// NewMemoryBroker constructs an empty in-memory broker.
func NewMemoryBroker() *Memory {
	return &Memory{}
}

func (m *Memory) PublishTask(ctx context.Context, msg TaskMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, memDelivery[TaskMessage]{payload: msg, attempt: 1})
	return nil
}

func (m *Memory) PublishTraining(ctx context.Context, msg TrainingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings = append(m.trainings, memDelivery[TrainingMessage]{payload: msg, attempt: 1})
	return nil
}

func (m *Memory) ConsumeTasks(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TaskMessage], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := max
	if n > len(m.tasks) {
		n = len(m.tasks)
	}
	batch := m.tasks[:n]
	m.tasks = m.tasks[n:]

	out := make([]*Delivery[TaskMessage], 0, n)
	for _, d := range batch {
		d := d
		out = append(out, &Delivery[TaskMessage]{
			Payload: d.payload,
			Attempt: d.attempt,
			ack:     func() error { return nil },
			nak: func(delay time.Duration) error {
				m.mu.Lock()
				defer m.mu.Unlock()
				if d.attempt+1 > MaxDeliver {
					m.deadTasks = append(m.deadTasks, d.payload)
					return nil
				}
				m.tasks = append(m.tasks, memDelivery[TaskMessage]{payload: d.payload, attempt: d.attempt + 1})
				return nil
			},
			term: func() error { return nil },
		})
	}
	return out, nil
}

func (m *Memory) ConsumeTrainings(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TrainingMessage], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := max
	if n > len(m.trainings) {
		n = len(m.trainings)
	}
	batch := m.trainings[:n]
	m.trainings = m.trainings[n:]

	out := make([]*Delivery[TrainingMessage], 0, n)
	for _, d := range batch {
		d := d
		out = append(out, &Delivery[TrainingMessage]{
			Payload: d.payload,
			Attempt: d.attempt,
			ack:     func() error { return nil },
			nak: func(delay time.Duration) error {
				m.mu.Lock()
				defer m.mu.Unlock()
				if d.attempt+1 > MaxDeliver {
					m.deadTrains = append(m.deadTrains, d.payload)
					return nil
				}
				m.trainings = append(m.trainings, memDelivery[TrainingMessage]{payload: d.payload, attempt: d.attempt + 1})
				return nil
			},
			term: func() error { return nil },
		})
	}
	return out, nil
}

// DeadLetteredTasks returns tasks that exhausted MaxDeliver Naks, for tests
// asserting on dead-letter behavior.
func (m *Memory) DeadLetteredTasks() []TaskMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskMessage(nil), m.deadTasks...)
}

func (m *Memory) Close() error { return nil }
