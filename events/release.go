package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReleaseRequest is an image reference whose release failed on the request path.
type ReleaseRequest struct {
	Ref      string    `json:"ref"`
	Attempt  int       `json:"attempt"`
	QueuedAt time.Time `json:"queued_at"`
}

func (r ReleaseRequest) Marshal() ([]byte, error) { return json.Marshal(r) }

func DecodeReleaseRequest(body []byte) (ReleaseRequest, error) {
	var r ReleaseRequest
	if err := json.Unmarshal(body, &r); err != nil {
		return ReleaseRequest{}, err
	}
	if r.Ref == "" {
		return ReleaseRequest{}, fmt.Errorf("release request without ref")
	}
	return r, nil
}

// Publisher publishes release requests to the queue.
type Publisher struct {
	pool      *ChannelPool
	queueName string
	timeout   time.Duration
}

func NewPublisher(pool *ChannelPool, queueName string) *Publisher {
	return &Publisher{pool: pool, queueName: queueName, timeout: 5 * time.Second}
}

// EnqueueRelease queues ref for a first retry.
func (p *Publisher) EnqueueRelease(ctx context.Context, ref string) error {
	return p.Publish(ctx, ReleaseRequest{Ref: ref, Attempt: 1, QueuedAt: time.Now().UTC()})
}

func (p *Publisher) Publish(ctx context.Context, req ReleaseRequest) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	ch, err := p.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}
	defer p.pool.Put(ch)

	body, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("marshal release request: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish release request: %w", err)
	}

	log.Printf("events: queued release of %s (attempt %d)", req.Ref, req.Attempt)
	return nil
}

// Discard drops release requests. It is used when no broker is configured.
type Discard struct {
	Log *log.Logger
}

func (d Discard) EnqueueRelease(_ context.Context, ref string) error {
	l := d.Log
	if l == nil {
		l = log.Default()
	}
	l.Printf("events: no release queue configured, image %s left orphaned", ref)
	return nil
}
