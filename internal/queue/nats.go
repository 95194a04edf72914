package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	streamName   = "IMAGE_TASKS"
	consumerName = "image-task-workers"
)

// NATSQueue is the broker-backed Queue: task ids travel through a JetStream
// stream with a durable pull consumer, so ids queued before a restart are
// redelivered to the next consumer.
type NATSQueue struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
	sub     *nats.Subscription
}

// ConnectNATS dials url and returns a NATSQueue that owns the connection.
func ConnectNATS(url, subject string) (*NATSQueue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	q, err := NewNATSQueue(js, subject)
	if err != nil {
		nc.Close()
		return nil, err
	}
	q.conn = nc
	return q, nil
}

// NewNATSQueue connects the stream and the durable consumer for subject.
func NewNATSQueue(js nats.JetStreamContext, subject string) (*NATSQueue, error) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("add stream: %w", err)
	}

	_, err = js.AddConsumer(streamName, &nats.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     nats.AckExplicitPolicy,
		FilterSubject: subject,
	})
	if err != nil && !errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		return nil, fmt.Errorf("add consumer: %w", err)
	}

	sub, err := js.PullSubscribe(subject, consumerName)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &NATSQueue{js: js, subject: subject, sub: sub}, nil
}

func (q *NATSQueue) Enqueue(ctx context.Context, taskID uuid.UUID) error {
	ack, err := q.js.PublishMsg(&nats.Msg{
		Subject: q.subject,
		Data:    []byte(taskID.String()),
	})
	if err != nil {
		return fmt.Errorf("enqueue task %s: publish failed: %w", taskID, err)
	}

	slog.Debug("task enqueued",
		slog.String("task_id", taskID.String()),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)
	return nil
}

func (q *NATSQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	for {
		msgs, err := q.sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return uuid.Nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return uuid.Nil, fmt.Errorf("fetch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		id, err := uuid.Parse(string(msg.Data))
		if err != nil {
			slog.Warn("discarding malformed queue message", slog.String("error", err.Error()))
			_ = msg.Ack()
			continue
		}
		if err := msg.Ack(); err != nil {
			slog.Warn("nats ack", slog.String("error", err.Error()))
		}
		return id, nil
	}
}

func (q *NATSQueue) Close() error {
	var err error
	if q.sub != nil {
		err = q.sub.Drain()
	}
	if q.conn != nil {
		q.conn.Close()
	}
	return err
}

var _ Queue = (*NATSQueue)(nil)
