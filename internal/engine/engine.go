// Package engine fans supervised workloads out over a set of monitoring
// targets and relabels everything they report with the caller's entry.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/nhle/mail-notifier/internal/backoff"
	"github.com/nhle/mail-notifier/internal/supervisor"
)

// Backoff policy applied to every task.
const (
	BackoffFactor  = 2
	BackoffInitial = time.Second
	BackoffMax     = 30 * time.Second
)

// DefaultBackoff returns a fresh backoff state with the engine policy.
func DefaultBackoff() *backoff.State {
	return backoff.New(BackoffFactor, BackoffInitial, BackoffMax)
}

// Workload is a long-running, normally infinite operation over one item.
// It reports progress through notify and returns only when it fails.
type Workload[Item, Payload any] interface {
	Run(ctx context.Context, item Item, notify func(Payload)) error
}

// WorkloadFunc adapts a function to the Workload interface.
type WorkloadFunc[Item, Payload any] func(ctx context.Context, item Item, notify func(Payload)) error

// Run calls f(ctx, item, notify).
func (f WorkloadFunc[Item, Payload]) Run(ctx context.Context, item Item, notify func(Payload)) error {
	return f(ctx, item, notify)
}

// Update is a payload tagged with the entry of the task that produced it.
type Update[Entry, Payload any] struct {
	Entry   Entry
	Payload Payload
}

// Event is a supervisor event of a task. Workloads never produce a value,
// so Done carries struct{}.
type Event = supervisor.Event[struct{}]

// Params configures Spawn.
type Params[Item, Entry, Payload any] struct {
	// Items are the targets, one task each.
	Items []Item

	// Register is called once per item, in order, before any task starts.
	Register func(Item) Entry

	Workload Workload[Item, Payload]

	// Updates receives every workload payload.
	Updates chan<- Update[Entry, Payload]

	// Events receives every supervisor event.
	Events chan<- Update[Entry, Event]

	// Sleep overrides the backoff sleep. Defaults to supervisor.Sleep.
	Sleep supervisor.SleepFunc

	// NewBackoff overrides the backoff policy. Defaults to DefaultBackoff.
	NewBackoff func() *backoff.State

	Logger *slog.Logger
}

// Group is the set of tasks started by one Spawn call.
type Group struct {
	cancels []context.CancelFunc
	wg      conc.WaitGroup
	once    sync.Once
}

// Spawn registers every item and starts one supervised task per item. It
// returns right away; tasks run until ctx is cancelled or the group is
// stopped.
func Spawn[Item, Entry, Payload any](ctx context.Context, p Params[Item, Entry, Payload]) *Group {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newBackoff := p.NewBackoff
	if newBackoff == nil {
		newBackoff = DefaultBackoff
	}

	entries := make([]Entry, len(p.Items))
	for i, item := range p.Items {
		entries[i] = p.Register(item)
	}

	g := &Group{cancels: make([]context.CancelFunc, len(p.Items))}
	for i, item := range p.Items {
		taskCtx, cancel := context.WithCancel(ctx)
		g.cancels[i] = cancel

		t := &task[Item, Entry, Payload]{
			item:    item,
			entry:   entries[i],
			params:  &p,
			backoff: newBackoff(),
		}
		g.wg.Go(func() {
			defer cancel()
			t.run(taskCtx)
			logger.Debug("task stopped", "task", i)
		})
	}
	logger.Debug("tasks spawned", "count", len(p.Items))

	return g
}

// Len returns the number of tasks.
func (g *Group) Len() int {
	return len(g.cancels)
}

// StopTask cancels the i-th task without waiting for it.
func (g *Group) StopTask(i int) {
	g.cancels[i]()
}

// Stop cancels every task and waits for all of them to return.
func (g *Group) Stop() {
	g.once.Do(func() {
		for _, cancel := range g.cancels {
			cancel()
		}
	})
	g.wg.Wait()
}

// Wait blocks until every task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

type task[Item, Entry, Payload any] struct {
	item    Item
	entry   Entry
	params  *Params[Item, Entry, Payload]
	backoff *backoff.State
}

func (t *task[Item, Entry, Payload]) run(ctx context.Context) {
	notifyWorkload := func(payload Payload) {
		send(ctx, t.params.Updates, Update[Entry, Payload]{Entry: t.entry, Payload: payload})
	}
	notifySupervisor := func(ev Event) {
		send(ctx, t.params.Events, Update[Entry, Event]{Entry: t.entry, Payload: ev})
	}
	work := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.params.Workload.Run(ctx, t.item, notifyWorkload)
	}

	_, _ = supervisor.Run(ctx, work, notifySupervisor, t.params.Sleep, t.backoff)
}

// send delivers v unless ctx is done first. A nil channel drops v.
func send[T any](ctx context.Context, ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}
