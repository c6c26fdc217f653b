package events

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReleaser struct {
	ok   bool
	refs []string
}

func (f *fakeReleaser) Release(_ context.Context, ref string) bool {
	f.refs = append(f.refs, ref)
	return f.ok
}

type fakeRequeuer struct {
	err  error
	sent []ReleaseRequest
}

func (f *fakeRequeuer) Publish(_ context.Context, req ReleaseRequest) error {
	f.sent = append(f.sent, req)
	return f.err
}

func body(t *testing.T, req ReleaseRequest) []byte {
	t.Helper()
	b, err := req.Marshal()
	require.NoError(t, err)
	return b
}

func newJanitor(r *fakeReleaser, q *fakeRequeuer) *Janitor {
	return &Janitor{Releaser: r, Requeuer: q, MaxAttempts: 3, Log: log.New(&bytes.Buffer{}, "", 0)}
}

func TestDecodeReleaseRequest(t *testing.T) {
	in := ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 2, QueuedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	out, err := DecodeReleaseRequest(body(t, in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeReleaseRequest([]byte(`{"attempt":1}`))
	assert.Error(t, err)
	_, err = DecodeReleaseRequest([]byte(`nope`))
	assert.Error(t, err)
}

func TestJanitor_Released(t *testing.T) {
	r, q := &fakeReleaser{ok: true}, &fakeRequeuer{}
	out := newJanitor(r, q).Handle(context.Background(), body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 1}))
	assert.Equal(t, Released, out)
	assert.Equal(t, []string{"https://cdn/a.jpg"}, r.refs)
	assert.Empty(t, q.sent)
}

func TestJanitor_RetriesWithBumpedAttempt(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{}
	out := newJanitor(r, q).Handle(context.Background(), body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 1}))
	assert.Equal(t, Retried, out)
	require.Len(t, q.sent, 1)
	assert.Equal(t, 2, q.sent[0].Attempt)
}

func TestJanitor_WaitsBeforeRequeue(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{}
	j := newJanitor(r, q)
	j.MaxAttempts = 10
	j.RetryDelay = time.Second
	j.MaxRetryDelay = 5 * time.Second
	var waits []time.Duration
	j.Sleep = func(_ context.Context, d time.Duration) {
		assert.Len(t, q.sent, len(waits), "wait must happen before publish")
		waits = append(waits, d)
	}

	for attempt := 1; attempt <= 5; attempt++ {
		out := j.Handle(context.Background(), body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: attempt}))
		require.Equal(t, Retried, out)
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, waits)
}

func TestJanitor_RequeuesOnShutdown(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{}
	j := newJanitor(r, q)
	j.RetryDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	out := j.Handle(ctx, body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 1}))
	assert.Equal(t, Retried, out)
	assert.Less(t, time.Since(start), time.Minute)
	require.Len(t, q.sent, 1)
}

func TestJanitor_GivesUpAtLimit(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{}
	out := newJanitor(r, q).Handle(context.Background(), body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 3}))
	assert.Equal(t, GaveUp, out)
	assert.Empty(t, q.sent)
}

func TestJanitor_RequeueFailure(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{err: errors.New("broker gone")}
	out := newJanitor(r, q).Handle(context.Background(), body(t, ReleaseRequest{Ref: "https://cdn/a.jpg", Attempt: 1}))
	assert.Equal(t, GaveUp, out)
}

func TestJanitor_Malformed(t *testing.T) {
	r, q := &fakeReleaser{}, &fakeRequeuer{}
	assert.Equal(t, Malformed, newJanitor(r, q).Handle(context.Background(), []byte("{")))
	assert.Empty(t, r.refs)
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Discard{Log: log.New(&buf, "", 0)}.EnqueueRelease(context.Background(), "https://cdn/a.jpg"))
	assert.Contains(t, buf.String(), "https://cdn/a.jpg")
}
