// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zoneminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/ManuGH/zmonvif/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ManuGH/zmonvif/internal/zoneminder"

// TaskFunc is one unit of queued work. It receives a fresh access token.
type TaskFunc func(ctx context.Context, token string) error

// TokenSource hands out valid access tokens.
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
}

type task struct {
	name string
	fn   TaskFunc
	done chan error
}

// Queue runs enqueued units strictly one at a time in FIFO order. A unit is
// not started before the previous one has returned. Exactly one drain
// goroutine exists while work is pending.
type Queue struct {
	ctx    context.Context
	tokens TokenSource
	logger zerolog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	pending  []*task
	draining bool
	idle     chan struct{} // closed when the current drain exits
}

// NewQueue creates an empty queue. Units run with ctx; once ctx is done the
// remaining units still run and fail fast with the context error.
func NewQueue(ctx context.Context, tokens TokenSource) *Queue {
	return &Queue{
		ctx:    ctx,
		tokens: tokens,
		logger: log.WithComponent("zoneminder.queue"),
		tracer: telemetry.Tracer(tracerName),
	}
}

// Enqueue appends a unit and starts draining if the queue is idle. It never
// blocks. The returned channel receives the unit's result exactly once and
// may be ignored.
func (q *Queue) Enqueue(name string, fn TaskFunc) <-chan error {
	t := &task{name: name, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	metrics.SetQueueDepth(len(q.pending))
	if !q.draining {
		q.draining = true
		q.idle = make(chan struct{})
		go q.drain(q.idle)
	}
	q.mu.Unlock()

	return t.done
}

// Len reports the number of units waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until the queue has drained or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if !q.draining {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain(idle chan struct{}) {
	defer close(idle)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			// Checked and cleared under the same lock as Enqueue, so a unit
			// appended right now either is seen here or starts a new drain.
			q.draining = false
			metrics.SetQueueDepth(0)
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		// Published under the lock so a stale depth never overwrites a newer one.
		metrics.SetQueueDepth(len(q.pending))
		q.mu.Unlock()

		t.done <- q.run(t)
	}
}

func (q *Queue) run(t *task) (err error) {
	start := time.Now()
	ctx := log.ContextWithCorrelationID(q.ctx, uuid.NewString())
	ctx, span := q.tracer.Start(ctx, "zoneminder."+t.name, trace.WithAttributes(telemetry.TaskAttributes(t.name)...))
	logger := log.WithContext(ctx, q.logger).With().Str(log.FieldTask, t.name).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("zoneminder task %s panicked: %v", t.name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn().Err(err).Msg("queued zoneminder request failed")
		} else {
			logger.Debug().Dur("duration", time.Since(start)).Msg("queued zoneminder request completed")
		}
		span.End()
		metrics.ObserveTask(t.name, time.Since(start).Seconds(), err == nil)
	}()

	token, err := q.tokens.EnsureToken(ctx)
	if err != nil {
		return err
	}
	return t.fn(ctx, token)
}
