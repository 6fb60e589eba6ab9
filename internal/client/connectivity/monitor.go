// Package connectivity отслеживает доступность сервера.
// Монитор только сообщает о переходах online/offline и никогда сам не запускает синхронизацию.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const changeBufferSize = 8

// DefaultProbeInterval интервал опроса по умолчанию
const DefaultProbeInterval = 30 * time.Second

// Provider проверяет связь с сервером; nil означает online
type Provider interface {
	Probe(ctx context.Context) error
}

// Change уведомление о смене состояния
type Change struct {
	At     time.Time
	Err    error // причина перехода в offline
	Online bool
}

// Monitor хранит текущее состояние связи и рассылает изменения подписчикам
type Monitor struct {
	logger  *slog.Logger
	now     func() time.Time
	lastErr error
	subs    []chan Change
	online  bool
	mu      sync.RWMutex
	subMu   sync.RWMutex
}

// NewMonitor creates a monitor with the given initial state
func NewMonitor(initial bool, logger *slog.Logger) *Monitor {
	return &Monitor{
		online: initial,
		logger: logger,
		now:    time.Now,
	}
}

// Online returns the current connectivity state
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.online
}

// LastError returns the probe error that put the monitor offline
func (m *Monitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastErr
}

// Set updates the state and notifies subscribers on a transition.
// Returns true when the state changed.
func (m *Monitor) Set(online bool) bool {
	return m.set(online, nil)
}

func (m *Monitor) set(online bool, cause error) bool {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	if online {
		m.lastErr = nil
	} else if cause != nil {
		m.lastErr = cause
	}
	m.mu.Unlock()

	if !changed {
		return false
	}

	if online {
		m.logger.Info("Connectivity restored")
	} else {
		m.logger.Warn("Connectivity lost", "error", cause)
	}
	m.broadcast(Change{Online: online, Err: cause, At: m.now()})
	return true
}

// Check probes once and updates the state
func (m *Monitor) Check(ctx context.Context, provider Provider) bool {
	err := provider.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		// остановка монитора не означает потерю связи
		return m.Online()
	}
	m.set(err == nil, err)
	return err == nil
}

// Run опрашивает provider каждые interval до отмены ctx.
// Первая проверка выполняется сразу.
func (m *Monitor) Run(ctx context.Context, provider Provider, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx, provider)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx, provider)
		}
	}
}

// Subscribe returns a channel receiving state transitions
func (m *Monitor) Subscribe() <-chan Change {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan Change, changeBufferSize)
	m.subs = append(m.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (m *Monitor) Unsubscribe(ch <-chan Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, sub := range m.subs {
		if sub == ch {
			close(sub)
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			break
		}
	}
}

func (m *Monitor) broadcast(change Change) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, sub := range m.subs {
		select {
		case sub <- change:
		default:
			// канал заполнен, не блокируем монитор
		}
	}
}
