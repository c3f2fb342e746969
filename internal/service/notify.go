package service

import (
	"sync"
	"time"
)

// NotifyWindow is how long a notification stays visible.
const NotifyWindow = 3 * time.Second

// Toast messages shown when a favorite is toggled.
const (
	MsgFavoriteAdded   = "Local adicionado aos favoritos!"
	MsgFavoriteRemoved = "Local removido dos favoritos!"
)

// Notifier holds at most one transient message. A new message replaces the
// pending one and restarts the dismiss timer.
type Notifier struct {
	window   time.Duration
	onChange func(msg string, visible bool)

	mu      sync.Mutex
	message string
	visible bool
	timer   *time.Timer
	seq     uint64
}

// NewNotifier creates a notifier. onChange, if set, is called after the
// message is shown or dismissed; it must not call back into the notifier.
func NewNotifier(window time.Duration, onChange func(msg string, visible bool)) *Notifier {
	if window <= 0 {
		window = NotifyWindow
	}
	return &Notifier{window: window, onChange: onChange}
}

// Notify shows msg for the notifier's window.
func (n *Notifier) Notify(msg string) {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	seq := n.seq
	n.message = msg
	n.visible = true
	n.timer = time.AfterFunc(n.window, func() { n.expire(seq) })
	n.mu.Unlock()

	if n.onChange != nil {
		n.onChange(msg, true)
	}
}

// expire dismisses the message only if it is still the one that armed the timer.
func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	if seq != n.seq || !n.visible {
		n.mu.Unlock()
		return
	}
	n.visible = false
	n.message = ""
	n.timer = nil
	n.mu.Unlock()

	if n.onChange != nil {
		n.onChange("", false)
	}
}

// Current returns the visible message, if any.
func (n *Notifier) Current() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.message, n.visible
}

// Stop cancels any pending dismissal without notifying.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.seq++
}
