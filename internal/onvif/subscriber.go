// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package onvif

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/zmonvif/internal/log"
	"github.com/ManuGH/zmonvif/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultSubscriptionTTL = 60 * time.Second
	defaultPullTimeout     = 30 * time.Second
	defaultMessageLimit    = 10
	defaultResubscribe     = 5 * time.Second
	unsubscribeTimeout     = 5 * time.Second
)

// Subscription stages, used as error and metric labels.
const (
	StageConnect   = "connect"
	StageSubscribe = "subscribe"
	StagePull      = "pull"
	StageRenew     = "renew"
)

// StageError tags a subscription failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// SubscriberConfig tunes the pull loop. Zero values select the defaults.
type SubscriberConfig struct {
	Name              string        // camera label for logs and metrics
	SubscriptionTTL   time.Duration // InitialTerminationTime / Renew duration
	PullTimeout       time.Duration
	MessageLimit      int
	ResubscribePeriod time.Duration // minimum spacing between subscription attempts
}

// SubscriberStatus is a point-in-time view for health checks.
type SubscriberStatus struct {
	Subscribed bool
	LastEvent  time.Time
	LastError  error
	Failures   int
}

// Subscriber keeps a PullPoint subscription alive and feeds its events to a handler.
type Subscriber struct {
	cam     *Camera
	cfg     SubscriberConfig
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu     sync.RWMutex
	status SubscriberStatus
}

// NewSubscriber creates a subscriber for cam.
func NewSubscriber(cam *Camera, cfg SubscriberConfig) *Subscriber {
	if cfg.SubscriptionTTL <= 0 {
		cfg.SubscriptionTTL = defaultSubscriptionTTL
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = defaultPullTimeout
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = defaultMessageLimit
	}
	if cfg.ResubscribePeriod <= 0 {
		cfg.ResubscribePeriod = defaultResubscribe
	}
	return &Subscriber{
		cam:     cam,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.ResubscribePeriod), 1),
		logger:  log.WithComponent("onvif.subscriber").With().Str(log.FieldCamera, cfg.Name).Logger(),
	}
}

// Status returns the subscription state.
func (s *Subscriber) Status() SubscriberStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run connects, subscribes and pulls until ctx ends, calling handler for every
// event in arrival order. Failures tear the subscription down and start over,
// no faster than the resubscribe period. Run returns nil once ctx is done.
func (s *Subscriber) Run(ctx context.Context, handler func(Event)) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		err := s.session(ctx, handler)
		s.setSubscribed(false)
		if ctx.Err() != nil {
			return nil
		}

		stage := StagePull
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		if stage == StageConnect || stage == StageSubscribe {
			s.cam.Reset()
		}
		metrics.RecordSubscriptionError(s.cfg.Name, stage)
		s.mu.Lock()
		s.status.LastError = err
		s.status.Failures++
		s.mu.Unlock()

		evt := s.logger.Warn()
		var fault *FaultError
		if errors.As(err, &fault) && fault.IsAuthFailure() {
			evt = s.logger.Error()
		}
		evt.Err(err).Str("stage", stage).Msg("camera subscription lost, resubscribing")
	}
}

func (s *Subscriber) session(ctx context.Context, handler func(Event)) error {
	if s.cam.EventsAddress() == "" {
		if err := s.cam.Connect(ctx); err != nil {
			return &StageError{Stage: StageConnect, Err: err}
		}
	}

	sub, err := s.cam.Subscribe(ctx, s.cfg.SubscriptionTTL)
	if err != nil {
		return &StageError{Stage: StageSubscribe, Err: err}
	}
	defer s.unsubscribe(sub)

	s.setSubscribed(true)
	s.logger.Info().Str(log.FieldURL, sub.Address).Msg("camera subscription active")

	renewAt := time.Now().Add(s.cfg.SubscriptionTTL / 2)
	for {
		events, err := s.cam.Pull(ctx, sub, s.cfg.PullTimeout, s.cfg.MessageLimit)
		if err != nil {
			return &StageError{Stage: StagePull, Err: err}
		}
		if len(events) > 0 {
			s.mu.Lock()
			s.status.LastEvent = time.Now()
			s.mu.Unlock()
		}
		for _, ev := range events {
			s.logger.Debug().Str(log.FieldTopic, ev.Topic).Msg("camera event")
			handler(ev)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !time.Now().Before(renewAt) {
			if err := s.cam.Renew(ctx, sub, s.cfg.SubscriptionTTL); err != nil {
				return &StageError{Stage: StageRenew, Err: err}
			}
			renewAt = time.Now().Add(s.cfg.SubscriptionTTL / 2)
		}
	}
}

// unsubscribe is best-effort; the subscription expires on its own otherwise.
func (s *Subscriber) unsubscribe(sub *Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	if err := s.cam.Unsubscribe(ctx, sub); err != nil {
		s.logger.Debug().Err(err).Msg("unsubscribe failed")
	}
}

func (s *Subscriber) setSubscribed(up bool) {
	s.mu.Lock()
	s.status.Subscribed = up
	if up {
		s.status.LastError = nil
	}
	s.mu.Unlock()
	metrics.SetSubscriptionUp(s.cfg.Name, up)
}
