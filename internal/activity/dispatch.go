package activity

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
)

// Dispatcher fans incoming messages out to a fixed set of workers, sharded
// by chat key. Messages from the same chat always land on the same worker,
// so per-chat evaluation stays in arrival order while distinct chats run in
// parallel.
type Dispatcher struct {
	ev      *Evaluator
	log     logx.Logger
	timeout time.Duration

	queues []chan transport.Message
	wg     sync.WaitGroup

	runMu   sync.Mutex
	cancel  context.CancelFunc
	running bool

	// dropped counts messages discarded because a shard queue was full.
	dropped atomic.Uint64
}

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single OnMessage call. On expiry the message is
	// dropped, not retried; a late notification about historical activity
	// has no value.
	Timeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig, ev *Evaluator, log logx.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{ev: ev, log: log, timeout: cfg.Timeout}
	d.queues = make([]chan transport.Message, cfg.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan transport.Message, cfg.QueueSize)
	}
	return d
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.running {
		return
	}
	d.running = true

	rctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := range d.queues {
		q := d.queues[i]
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-rctx.Done():
					return
				case msg := <-q:
					mctx, mcancel := context.WithTimeout(rctx, d.timeout)
					d.ev.OnMessage(mctx, msg)
					mcancel()
				}
			}
		}()
	}

	// Periodic summary for dropped messages (avoid per-message log spam).
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := d.dropped.Swap(0); n > 0 {
					d.log.Warn("messages dropped (shard queue full)", logx.Uint64("count", n))
				}
				return
			case <-ticker.C:
				if n := d.dropped.Swap(0); n > 0 {
					d.log.Warn("messages dropped (shard queue full)", logx.Uint64("count", n))
				}
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.running = false
	d.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Submit enqueues a message for evaluation. It never blocks; when the shard
// queue is full the message is dropped and counted.
func (d *Dispatcher) Submit(msg transport.Message) bool {
	q := d.queues[shard(msg.Chat.Key(), len(d.queues))]
	select {
	case q <- msg:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func shard(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
