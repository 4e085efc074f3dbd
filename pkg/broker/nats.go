package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/taskforge/platform/pkg/apperr"
)

// MaxDeliver bounds redelivery attempts before JetStream dead-letters a
// message by leaving it permanently unacked past this count (spec.md §4.3,
// §7 transport-kind retry).
const MaxDeliver = 5

// AckWait is how long JetStream waits for an Ack before considering a
// delivery timed out and eligible for redelivery.
const AckWait = 5 * time.Minute

// NATS is a JetStream-backed Broker. Grounded on the task-generator
// component's durable pull-consumer shape (Fetch + Ack/Nak/InProgress).
type NATS struct {
	conn *nats.Conn
	js   jetstream.JetStream

	taskStream     jetstream.Stream
	trainingStream jetstream.Stream
	taskConsumer   jetstream.Consumer
	trainConsumer  jetstream.Consumer
}

// NATSOptions configures stream/consumer names so multiple deployments can
// share a NATS cluster without colliding.
type NATSOptions struct {
	TaskConsumerName     string
	TrainingConsumerName string
}

func (o NATSOptions) withDefaults() NATSOptions {
	if o.TaskConsumerName == "" {
		o.TaskConsumerName = "taskforge-runner"
	}
	if o.TrainingConsumerName == "" {
		o.TrainingConsumerName = "taskforge-training"
	}
	return o
}

// NewNATS connects to NATS, ensures both streams and their durable pull
// consumers exist, and returns a ready-to-use Broker.
func NewNATS(ctx context.Context, url string, opts NATSOptions) (*NATS, error) {
	opts = opts.withDefaults()

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("broker: connect to nats: %w: %v", apperr.Transport, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: jetstream context: %w: %v", apperr.Transport, err)
	}

	taskStream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamAgentTasks,
		Subjects: []string{SubjectAgentTask},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: create stream %s: %w: %v", StreamAgentTasks, apperr.Transport, err)
	}

	trainingStream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamTrainingJobs,
		Subjects: []string{SubjectTrainingJob},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: create stream %s: %w: %v", StreamTrainingJobs, apperr.Transport, err)
	}

	taskConsumer, err := taskStream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       opts.TaskConsumerName,
		FilterSubject: SubjectAgentTask,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       AckWait,
		MaxDeliver:    MaxDeliver,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: create task consumer: %w: %v", apperr.Transport, err)
	}

	trainConsumer, err := trainingStream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       opts.TrainingConsumerName,
		FilterSubject: SubjectTrainingJob,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       AckWait,
		MaxDeliver:    MaxDeliver,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: create training consumer: %w: %v", apperr.Transport, err)
	}

	return &NATS{
		conn:           conn,
		js:             js,
		taskStream:     taskStream,
		trainingStream: trainingStream,
		taskConsumer:   taskConsumer,
		trainConsumer:  trainConsumer,
	}, nil
}

func (n *NATS) PublishTask(ctx context.Context, msg TaskMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal task message: %w", err)
	}
	if _, err := n.js.Publish(ctx, SubjectAgentTask, data); err != nil {
		return fmt.Errorf("broker: publish task: %w: %v", apperr.Transport, err)
	}
	return nil
}

func (n *NATS) PublishTraining(ctx context.Context, msg TrainingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal training message: %w", err)
	}
	if _, err := n.js.Publish(ctx, SubjectTrainingJob, data); err != nil {
		return fmt.Errorf("broker: publish training: %w: %v", apperr.Transport, err)
	}
	return nil
}

func (n *NATS) ConsumeTasks(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TaskMessage], error) {
	return fetchDeliveries(ctx, n.taskConsumer, max, wait, func(data []byte) (TaskMessage, error) {
		var m TaskMessage
		err := json.Unmarshal(data, &m)
		return m, err
	})
}

func (n *NATS) ConsumeTrainings(ctx context.Context, max int, wait time.Duration) ([]*Delivery[TrainingMessage], error) {
	return fetchDeliveries(ctx, n.trainConsumer, max, wait, func(data []byte) (TrainingMessage, error) {
		var m TrainingMessage
		err := json.Unmarshal(data, &m)
		return m, err
	})
}

func fetchDeliveries[T any](ctx context.Context, consumer jetstream.Consumer, max int, wait time.Duration, decode func([]byte) (T, error)) ([]*Delivery[T], error) {
	msgs, err := consumer.Fetch(max, jetstream.FetchMaxWait(wait))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: fetch: %w: %v", apperr.Transport, err)
	}

	var out []*Delivery[T]
	for msg := range msgs.Messages() {
		payload, err := decode(msg.Data())
		if err != nil {
			// Malformed payload can never succeed on redelivery; terminate
			// it rather than burn through MaxDeliver attempts.
			_ = msg.Term()
			continue
		}
		meta, _ := msg.Metadata()
		attempt := 1
		if meta != nil {
			attempt = int(meta.NumDelivered)
		}
		out = append(out, &Delivery[T]{
			Payload: payload,
			Attempt: attempt,
			ack:     msg.Ack,
			nak: func(delay time.Duration) error {
				if delay <= 0 {
					return msg.Nak()
				}
				return msg.NakWithDelay(delay)
			},
			term: msg.Term,
		})
	}
	if err := msgs.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return out, fmt.Errorf("broker: fetch stream error: %w: %v", apperr.Transport, err)
	}
	return out, nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
