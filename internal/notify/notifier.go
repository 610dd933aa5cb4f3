// Package notify adapts the teacher's beeep-backed alert manager
// (internal/notifications/manager.go) to the engine's watchdog
// notification needs: instead of glucose-threshold alerts, it watches
// for the loop going quiet.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// watchdogWindow is how long the loop may go without completing a tick
// before LoopNotRunning fires, per spec.md §7's "re-scheduling of a
// 'loop not running' watchdog notification" on every successful tick.
const watchdogWindow = 16 * time.Minute

// Notifier sends desktop notifications via beeep and re-arms a watchdog
// timer on every healthy tick, firing a "loop not running" alert if the
// timer is ever allowed to expire.
type Notifier struct {
	mu    sync.Mutex
	timer *time.Timer

	AppName string
}

// NewNotifier constructs a Notifier. The watchdog is armed lazily on the
// first LoopHealthy call.
func NewNotifier(appName string) *Notifier {
	return &Notifier{AppName: appName}
}

// LoopHealthy re-arms the watchdog window, called on every successful
// decision-pipeline tick.
func (n *Notifier) LoopHealthy() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(watchdogWindow, func() {
		_ = beeep.Notify(n.AppName, "Loop has not completed a cycle recently.", "")
	})
}

// LoopNotRunning sends an immediate watchdog alert naming how long it
// has been since the last successful tick.
func (n *Notifier) LoopNotRunning(lastCompleted time.Time) {
	since := "an unknown duration"
	if !lastCompleted.IsZero() {
		since = time.Since(lastCompleted).Round(time.Second).String()
	}
	_ = beeep.Notify(n.AppName, fmt.Sprintf("Loop has not run in %s.", since), "")
}

// Stop releases the watchdog timer.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
}
