// Package mail queues outbound notifications so delivery never sits on
// the request path. Failed sends are logged, never returned to callers.
package mail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/rbacauth/internal/logging"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Enqueuer accepts messages for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, m Message)
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	Log logging.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	s.Log.Info(ctx, "mail", "to", m.To, "subject", m.Subject, "text", m.Text)
	return nil
}

// Dispatcher drains a buffered queue into a Sender on one worker goroutine.
// When the queue is full new messages are dropped and counted.
type Dispatcher struct {
	sender    Sender
	log       logging.Logger
	timeout   time.Duration
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64

	// mu orders sends against Close: once closed is set under the write
	// lock, no send can reach ch after the worker has drained it.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, bufferSize int, log logging.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	d := &Dispatcher{
		sender:  sender,
		log:     log,
		timeout: 30 * time.Second,
		ch:      make(chan Message, bufferSize),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case m := <-d.ch:
			d.deliver(m)
		case <-d.done:
			for {
				select {
				case m := <-d.ch:
					d.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, m); err != nil {
		d.failed.Add(1)
		d.log.Error(ctx, "mail delivery failed", "to", m.To, "subject", m.Subject, "error", err)
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, m Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.log.Warn(ctx, "mail dropped after shutdown", "to", m.To, "subject", m.Subject)
		return
	}
	select {
	case d.ch <- m:
	default:
		d.dropped.Add(1)
		d.log.Warn(ctx, "mail queue full, message dropped", "to", m.To, "subject", m.Subject)
	}
}

// Close stops accepting messages and waits for the queue to drain.
// Calling it more than once is safe.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }
func (d *Dispatcher) Failed() uint64  { return d.failed.Load() }
