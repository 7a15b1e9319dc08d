package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"pulsebot/internal/activity"
	"pulsebot/internal/config"
	"pulsebot/internal/eventbus"
	"pulsebot/internal/notifier"
	"pulsebot/internal/storage"
	logx "pulsebot/pkg/logx"
)

// maintenance runs the periodic background jobs: cooldown pruning,
// subscriber-index refresh from the store, and a daily activity summary
// built from bus events.
type maintenance struct {
	cron *cron.Cron
	log  logx.Logger

	store storage.Store
	gate  *activity.CooldownGate
	index *activity.SubscriberIndex
	bus   eventbus.Bus

	cooldownMaxAge time.Duration

	// Counters since the last daily summary.
	notified   atomic.Uint64
	suppressed atomic.Uint64
	sent       atomic.Uint64
	failed     atomic.Uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newMaintenance(cfg config.MaintenanceConfig, store storage.Store, gate *activity.CooldownGate,
	index *activity.SubscriberIndex, bus eventbus.Bus, log logx.Logger) (*maintenance, error) {

	maxAge, err := config.ParseDurationOrDefault("maintenance.cooldown_max_age", cfg.CooldownMaxAge, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	m := &maintenance{
		cron:           cron.New(),
		log:            log,
		store:          store,
		gate:           gate,
		index:          index,
		bus:            bus,
		cooldownMaxAge: maxAge,
	}

	pruneSpec := specOrDefault(cfg.CooldownPrune, "17 * * * *")
	refreshSpec := specOrDefault(cfg.IndexRefresh, "*/5 * * * *")
	summarySpec := specOrDefault(cfg.DailySummary, "0 9 * * *")

	if _, err := m.cron.AddFunc(pruneSpec, m.pruneCooldowns); err != nil {
		return nil, err
	}
	if _, err := m.cron.AddFunc(refreshSpec, m.refreshIndex); err != nil {
		return nil, err
	}
	if _, err := m.cron.AddFunc(summarySpec, m.logSummary); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *maintenance) start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.cron.Start()

	ch, unsub := m.bus.Subscribe(64)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer unsub()
		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				m.count(ev)
			}
		}
	}()
}

func (m *maintenance) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.cron.Stop().Done()
	m.wg.Wait()
}

func (m *maintenance) count(ev eventbus.Event) {
	switch ev.Type {
	case activity.TopicNotified:
		m.notified.Add(1)
	case activity.TopicSuppressed:
		m.suppressed.Add(1)
	case notifier.TopicSent:
		m.sent.Add(1)
	case notifier.TopicFailed:
		m.failed.Add(1)
	}
}

func (m *maintenance) pruneCooldowns() {
	if n := m.gate.Prune(m.cooldownMaxAge); n > 0 {
		m.log.Debug("cooldown entries pruned", logx.Int("count", n))
	}
}

func (m *maintenance) refreshIndex() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subs, err := m.store.ListSubscribers(ctx)
	if err != nil {
		m.log.Warn("subscriber refresh failed", logx.Err(err))
		return
	}
	m.index.Replace(subs)
}

func (m *maintenance) logSummary() {
	m.log.Info("daily activity summary",
		logx.Uint64("notified", m.notified.Swap(0)),
		logx.Uint64("suppressed", m.suppressed.Swap(0)),
		logx.Uint64("delivered", m.sent.Swap(0)),
		logx.Uint64("delivery_failed", m.failed.Swap(0)),
		logx.Int("subscribers", m.index.Len()),
	)
}

func specOrDefault(spec, def string) string {
	if spec == "" {
		return def
	}
	return spec
}
