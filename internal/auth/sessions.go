package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

type SessionBus interface {
	SubscribeSessions(ctx context.Context) (<-chan []byte, func() error, error)
}

type Listener func(SessionEvent)

// SessionHub relays session events from the bus to in-process listeners.
// One hub serves the whole process.
type SessionHub struct {
	bus    SessionBus
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	started  bool
	cancel   context.CancelFunc
	closeSub func() error
	done     chan struct{}
}

func NewSessionHub(bus SessionBus, logger *zap.Logger) *SessionHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHub{
		bus:       bus,
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}
}

func (h *SessionHub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return errors.New("session hub already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	events, closeSub, err := h.bus.SubscribeSessions(ctx)
	if err != nil {
		cancel()
		return err
	}

	h.started = true
	h.cancel = cancel
	h.closeSub = closeSub
	h.done = make(chan struct{})
	go h.run(events, h.done)
	return nil
}

func (h *SessionHub) run(events <-chan []byte, done chan struct{}) {
	defer close(done)
	for payload := range events {
		var event SessionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.logger.Warn("dropping malformed session event", zap.Error(err))
			continue
		}
		h.dispatch(event)
	}
}

func (h *SessionHub) dispatch(event SessionEvent) {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}

// Subscribe registers l and returns a func that removes it.
func (h *SessionHub) Subscribe(l Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Close ends the subscription and waits for the relay to drain.
func (h *SessionHub) Close() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = false
	cancel, closeSub, done := h.cancel, h.closeSub, h.done
	h.mu.Unlock()

	cancel()
	var err error
	if closeSub != nil {
		err = closeSub()
	}
	<-done
	return err
}
