/*
notify.go - Fire-and-forget notification dispatch

PURPOSE:
  Milestone detection and similar side effects must never roll back or
  block the primary state transition. Instead of calling a transport
  inside the mutation, operations emit Notification values to a
  Dispatcher AFTER the primary write commits. The dispatcher hands them
  to a Notifier on a background goroutine; a failing or slow notifier is
  structurally incapable of affecting attendance state.

USAGE:
  d := engine.NewDispatcher(notifier)
  d.Start()
  defer d.Stop()
  ...
  d.Dispatch(engine.Notification{UserID: u, Title: "Milestone!", ...})

SEE ALSO:
  - attendance/milestones.go: The main producer of notifications
*/
package engine

import (
	"context"
	"log"
	"sync"
)

// Notification is the payload handed to the external notification
// dispatcher (push, email - not this engine's concern).
type Notification struct {
	UserID   UserID
	Title    string
	Body     string
	Metadata map[string]string
}

// Notifier delivers a single notification. Implementations are external
// collaborators; failures are logged, never propagated.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the process log. The default when no
// real transport is wired.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, n Notification) error {
	log.Printf("[Notifier] user=%s title=%q body=%q", n.UserID, n.Title, n.Body)
	return nil
}

// =============================================================================
// DISPATCHER - Buffered async fan-out to a Notifier
// =============================================================================

// Dispatcher decouples notification production from delivery. Dispatch
// never blocks the caller: when the buffer is full the notification is
// dropped with a log line, which is acceptable for best-effort milestones.
type Dispatcher struct {
	Notifier Notifier

	ch   chan Notification
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{
		Notifier: n,
		ch:       make(chan Notification, 256),
		stop:     make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop drains nothing; it simply terminates delivery. Pending buffered
// notifications are dropped, which matches their best-effort contract.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

// Dispatch enqueues a notification without blocking.
func (d *Dispatcher) Dispatch(n Notification) {
	select {
	case d.ch <- n:
	default:
		log.Printf("[Notifier] buffer full, dropping notification for user=%s", n.UserID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.ch:
			if err := d.Notifier.Send(context.Background(), n); err != nil {
				log.Printf("[Notifier] send failed for user=%s: %v", n.UserID, err)
			}
		case <-d.stop:
			return
		}
	}
}
