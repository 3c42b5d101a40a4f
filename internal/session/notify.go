package session

import (
	"sync"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-visible message raised by the session.
type Notification struct {
	Level   Level
	Op      string
	Message string
	Err     error
}

// subscriberBuffer bounds how many notifications a slow consumer can lag.
const subscriberBuffer = 16

type notifier struct {
	mu   sync.Mutex
	subs map[int]chan Notification
	next int
}

func (n *notifier) subscribe() (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]chan Notification)
	}
	id := n.next
	n.next++
	ch := make(chan Notification, subscriberBuffer)
	n.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if c, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(c)
			}
		})
	}
}

// publish delivers to every subscriber without blocking and returns how
// many subscribers dropped the notification.
func (n *notifier) publish(note Notification) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	dropped := 0
	for _, ch := range n.subs {
		select {
		case ch <- note:
		default:
			dropped++
		}
	}
	return dropped
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
}
