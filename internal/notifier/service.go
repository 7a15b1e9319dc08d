package notifier

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pulsebot/internal/eventbus"
	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Service implements an async delivery pipeline:
// bounded queue + worker pool + token-bucket rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan Notification

	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accepting {
		return
	}

	rctx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.queue = make(chan Notification, s.cfg.QueueSize)
	s.accepting = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go s.worker(rctx)
	}
	s.log.Info("notifier started",
		logx.Int("workers", s.cfg.Workers),
		logx.Int("queue", s.cfg.QueueSize),
	)
}

// Stop drains nothing: queued notifications that have not been picked up by
// a worker when the run context is canceled are dropped. Late notifications
// about historical activity carry no value.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.accepting = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Notify enqueues a notification. It never blocks.
func (s *Service) Notify(_ context.Context, n Notification) error {
	s.mu.Lock()
	accepting := s.accepting
	q := s.queue
	s.mu.Unlock()

	if !accepting || q == nil {
		return ErrStopped
	}
	select {
	case q <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.workerWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n Notification) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	var lastErr error
	delay := s.cfg.RetryBase
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(delay)):
			}
			delay *= 2
			if delay > s.cfg.RetryMaxDelay {
				delay = s.cfg.RetryMaxDelay
			}
		}

		_, err := s.adapter.SendDirect(ctx, n.Subscriber, n.Text, &transport.SendOptions{
			ParseMode:      "HTML",
			DisablePreview: true,
		})
		if err == nil {
			s.publish(TopicSent, n, nil)
			s.log.Debug("notification delivered",
				logx.Int64("subscriber", n.Subscriber),
				logx.String("key", n.Key),
				logx.Int("attempt", attempt+1),
			)
			return
		}
		lastErr = err
	}

	s.publish(TopicFailed, n, lastErr)
	s.log.Warn("notification delivery gave up",
		logx.Int64("subscriber", n.Subscriber),
		logx.String("key", n.Key),
		logx.Int("attempts", s.cfg.RetryMax+1),
		logx.Err(lastErr),
	)
}

func (s *Service) publish(topic string, n Notification, err error) {
	if s.bus == nil {
		return
	}
	ev := DeliveryEvent{Subscriber: n.Subscriber, Key: n.Key, At: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: topic, Data: ev})
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/- 20%
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
