// Package channel defines the transport contract between chat platforms and the matchmaker.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	DefaultInboundWorkers = 8
	DefaultInboundQueue   = 256
)

// Manager owns the transport adapter: it connects the receiver, queues inbound
// messages onto a worker pool and routes replies through the sender.
type Manager struct {
	processor InboundProcessor
	logger    *slog.Logger

	adapterMu sync.RWMutex
	adapter   Adapter
	sender    Sender
	receiver  Receiver

	mu         sync.Mutex
	connection Connection

	// One queue per worker; a sender always lands on the same worker so
	// its updates are handled in arrival order.
	inboundQueues []chan inboundTask
	inboundOnce   sync.Once
	inboundCtx    context.Context
	inboundCancel context.CancelFunc
	inboundWG     sync.WaitGroup
}

func NewManager(log *slog.Logger, processor InboundProcessor, workers, queueSize int) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultInboundWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultInboundQueue
	}
	perWorker := max(queueSize/workers, 1)
	queues := make([]chan inboundTask, workers)
	for i := range queues {
		queues[i] = make(chan inboundTask, perWorker)
	}
	inboundCtx, inboundCancel := context.WithCancel(context.Background())
	return &Manager{
		processor:     processor,
		logger:        log.With(slog.String("component", "channel")),
		inboundQueues: queues,
		inboundCtx:    inboundCtx,
		inboundCancel: inboundCancel,
	}
}

// RegisterAdapter sets the transport. An adapter may be a Sender, a Receiver or both.
func (m *Manager) RegisterAdapter(adapter Adapter) {
	if adapter == nil {
		return
	}
	m.adapterMu.Lock()
	m.adapter = adapter
	m.sender, _ = adapter.(Sender)
	m.receiver, _ = adapter.(Receiver)
	m.adapterMu.Unlock()
	m.logger.Info("adapter registered", slog.String("channel", adapter.Type().String()))
}

// Sender returns the registered sender, or nil.
func (m *Manager) Sender() Sender {
	m.adapterMu.RLock()
	defer m.adapterMu.RUnlock()
	return m.sender
}

// Start launches the inbound workers and connects the receiver.
func (m *Manager) Start(ctx context.Context) error {
	m.startInboundWorkers()

	m.adapterMu.RLock()
	receiver, adapter := m.receiver, m.adapter
	m.adapterMu.RUnlock()
	if receiver == nil {
		return errors.New("no receiver registered")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connection != nil && m.connection.Running() {
		return nil
	}
	conn, err := receiver.Connect(ctx, m.HandleInbound)
	if err != nil {
		return fmt.Errorf("connect %s: %w", adapter.Type(), err)
	}
	m.connection = conn
	m.logger.Info("manager started", slog.String("channel", adapter.Type().String()), slog.Int("workers", len(m.inboundQueues)))
	return nil
}

// Send delivers msg through the registered sender.
func (m *Manager) Send(ctx context.Context, msg OutboundMessage) error {
	sender := m.Sender()
	if sender == nil {
		return errors.New("no sender registered")
	}
	return sender.Send(ctx, msg)
}

// Shutdown stops the connection and waits for in-flight messages, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	var stopErr error
	m.mu.Lock()
	if m.connection != nil {
		if err := m.connection.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
			stopErr = err
		}
		m.connection = nil
	}
	m.mu.Unlock()

	m.inboundCancel()
	done := make(chan struct{})
	go func() {
		m.inboundWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(stopErr, ctx.Err())
	}
	return stopErr
}
