package runtime

import (
	"context"

	"github.com/lvatt/flowgraph/signal"
)

type (
	// Message is a main structure for graph transport.
	Message struct {
		Buffer signal.Buffer
	}

	// Sender sends messages to the next component.
	Sender interface {
		Send(context.Context, Message) bool
		Close()
	}

	// Receiver receives messages from the previous component.
	Receiver interface {
		Receive(context.Context) (Message, bool)
	}

	// Link connects exactly one sender with exactly one receiver.
	Link interface {
		Sender
		Receiver
	}

	syncLink struct {
		message Message
		closed  bool
	}

	asyncLink chan Message
)

// SyncLink returns a link to use when sender and receiver are executed
// in the same goroutine.
func SyncLink() Link {
	return &syncLink{}
}

// AsyncLink returns a link between goroutines. It holds at most one
// message, so a fast producer blocks until the consumer catches up.
func AsyncLink() Link {
	return asyncLink(make(chan Message, 1))
}

func (l *syncLink) Send(_ context.Context, m Message) bool {
	l.message = m
	return true
}

func (l *syncLink) Receive(context.Context) (Message, bool) {
	if l.closed {
		return Message{}, false
	}
	return l.message, true
}

func (l *syncLink) Close() {
	l.closed = true
}

func (l asyncLink) Send(ctx context.Context, m Message) bool {
	select {
	case <-ctx.Done():
		return false
	case l <- m:
		return true
	}
}

func (l asyncLink) Receive(ctx context.Context) (Message, bool) {
	var (
		m  Message
		ok bool
	)
	select {
	case <-ctx.Done():
	case m, ok = <-l:
	}
	return m, ok
}

func (l asyncLink) Close() {
	close(l)
}
