package events

import (
	"context"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Releaser deletes an image by reference and reports success.
type Releaser interface {
	Release(ctx context.Context, ref string) bool
}

// Requeuer publishes a release request for another attempt.
type Requeuer interface {
	Publish(ctx context.Context, req ReleaseRequest) error
}

// Outcome is what the janitor decided for one message.
type Outcome int

const (
	Released Outcome = iota
	Retried
	GaveUp
	Malformed
)

// Janitor retries releases queued by the API, giving up after MaxAttempts. Before each
// requeue it waits RetryDelay, doubled per attempt and capped at MaxRetryDelay.
type Janitor struct {
	Releaser      Releaser
	Requeuer      Requeuer
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Log           *log.Logger

	// Sleep replaces the timer in tests.
	Sleep func(ctx context.Context, d time.Duration)
}

// backoff is the wait before publishing attempt next.
func (j *Janitor) backoff(next int) time.Duration {
	d := j.RetryDelay
	for i := 2; i < next && d > 0; i++ {
		d *= 2
		if j.MaxRetryDelay > 0 && d >= j.MaxRetryDelay {
			return j.MaxRetryDelay
		}
	}
	if j.MaxRetryDelay > 0 && d > j.MaxRetryDelay {
		return j.MaxRetryDelay
	}
	return d
}

func (j *Janitor) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if j.Sleep != nil {
		j.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (j *Janitor) logger() *log.Logger {
	if j.Log != nil {
		return j.Log
	}
	return log.Default()
}

// Handle processes one message body.
func (j *Janitor) Handle(ctx context.Context, body []byte) Outcome {
	req, err := DecodeReleaseRequest(body)
	if err != nil {
		j.logger().Printf("janitor: dropping malformed message: %v", err)
		return Malformed
	}

	if j.Releaser.Release(ctx, req.Ref) {
		j.logger().Printf("janitor: released %s after %d attempt(s)", req.Ref, req.Attempt)
		return Released
	}

	if req.Attempt >= j.MaxAttempts {
		j.logger().Printf("janitor: giving up on %s after %d attempts", req.Ref, req.Attempt)
		return GaveUp
	}

	req.Attempt++
	j.wait(ctx, j.backoff(req.Attempt))
	// a shutdown cuts the wait short but the request must still be handed back
	if err := j.Requeuer.Publish(context.WithoutCancel(ctx), req); err != nil {
		j.logger().Printf("janitor: requeue %s failed: %v", req.Ref, err)
		return GaveUp
	}
	return Retried
}

// Run consumes the queue on ch until the delivery channel closes. Messages are acked
// once handled; malformed ones are rejected without requeue.
func (j *Janitor) Run(ctx context.Context, ch *amqp.Channel, queue, tag string, wg *sync.WaitGroup) error {
	if wg != nil {
		defer wg.Done()
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx,
		queue,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	j.logger().Printf("janitor: %s consuming %s", tag, queue)
	for msg := range msgs {
		if j.Handle(ctx, msg.Body) == Malformed {
			_ = msg.Nack(false, false)
			continue
		}
		if err := msg.Ack(false); err != nil {
			j.logger().Printf("janitor: ack failed: %v", err)
		}
	}
	j.logger().Printf("janitor: %s stopped", tag)
	return nil
}
