package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"pulsebot/internal/activity"
	"pulsebot/internal/commands"
	"pulsebot/internal/config"
	"pulsebot/internal/eventbus"
	"pulsebot/internal/notifier"
	"pulsebot/internal/storage"
	"pulsebot/internal/transport"
	"pulsebot/internal/transport/telegram"
	logx "pulsebot/pkg/logx"
)

// App owns the wiring: config -> logging -> adapter -> store -> pipeline.
type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	adapter *telegram.Adapter

	gate  *activity.CooldownGate
	index *activity.SubscriberIndex
	disp  *activity.Dispatcher
	notif *notifier.Service
	cmdm  *commands.Manager
	maint *maintenance

	updates chan transport.Update

	runMu     sync.Mutex
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		HistorySize: cfg.Activity.HistorySize,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        storagePathOrDefault(cfg.Storage.Path),
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	gate := activity.NewCooldownGate(nil)
	index := activity.NewSubscriberIndex()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, adapter, log.With(logx.String("comp", "notifier")), bus)

	evaluator := activity.NewEvaluator(activity.EvaluatorDeps{
		Rules:   store,
		Index:   index,
		History: adapter,
		Gate:    gate,
		Sink:    notifier.NewPayloadSink(notif),
		Bus:     bus,
		Log:     log.With(logx.String("comp", "evaluator")),
	})

	evalTimeout, err := config.ParseDurationOrDefault("activity.eval_timeout", cfg.Activity.EvalTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	disp := activity.NewDispatcher(activity.DispatcherConfig{
		Workers:   cfg.Activity.Workers,
		QueueSize: cfg.Activity.QueueSize,
		Timeout:   evalTimeout,
	}, evaluator, log.With(logx.String("comp", "dispatch")))

	cmdm := commands.NewManager(adapter, cfg.Telegram.OwnerUserIDs, log.With(logx.String("comp", "commands")))
	commands.RegisterAll(cmdm, commands.Deps{Store: store, Index: index, Gate: gate})

	maint, err := newMaintenance(cfg.Maintenance, store, gate, index, bus, log.With(logx.String("comp", "maintenance")))
	if err != nil {
		return nil, err
	}

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: adapter,
		gate:    gate,
		index:   index,
		disp:    disp,
		notif:   notif,
		cmdm:    cmdm,
		maint:   maint,
		updates: make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	// Seed the subscriber index before messages flow.
	if subs, err := a.store.ListSubscribers(rctx); err != nil {
		a.log.Warn("initial subscriber load failed", logx.Err(err))
	} else {
		a.index.Replace(subs)
		a.log.Info("subscriber index loaded", logx.Int("count", len(subs)))
	}

	a.notif.Start(rctx)
	a.disp.Start(rctx)
	a.maint.start(rctx)

	if err := a.adapter.Start(rctx, a.updates); err != nil {
		cancel()
		return err
	}

	if err := a.adapter.UpdateMenuCommands(rctx, a.cmdm.MenuCommands()); err != nil {
		a.log.Warn("menu command update failed", logx.Err(err))
	}

	if err := a.cfgm.Watch(rctx); err != nil {
		a.log.Warn("config watch unavailable", logx.Err(err))
	}
	cfgCh, unsub := a.cfgm.Subscribe()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.updateLoop(rctx)
	}()
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-rctx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("pulsebot started")
	return nil
}

func (a *App) updateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			if up.Kind != transport.UpdateMessage || up.Message == nil {
				continue
			}
			msg := *up.Message

			if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
				// Commands do store and network I/O; don't block the loop.
				go a.cmdm.Dispatch(ctx, msg)
				continue
			}
			a.disp.Submit(msg)
		}
	}
}

// applyConfig handles a hot-reloaded config. Only logging takes effect
// without a restart; everything else needs a process bounce.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	a.runMu.Unlock()
	if cancel != nil {
		cancel()
	}

	_ = a.adapter.Stop(ctx)
	a.disp.Stop()
	a.notif.Stop(ctx)
	a.maint.stop()
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	_ = a.logs.Close()
	return nil
}

func storagePathOrDefault(p string) string {
	if strings.TrimSpace(p) == "" {
		return "./data/pulsebot.db"
	}
	return p
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	retryBase, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:       cfg.Notifier.Workers,
		QueueSize:     cfg.Notifier.QueueSize,
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, nil
}
