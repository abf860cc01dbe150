// Package netstatus implements the network status monitor from spec.md
// §4.3 (C3): it owns one store's StoreStatus record and reacts to
// online/offline, focus, and interval signals by invoking a host-supplied
// reload callback.
//
// Grounded on the reconnect/backoff/heartbeat lifecycle in
// internal/autoconfig/stream_manager.go (Start/Close/halt channel) and the
// io.Closer teardown contract in internal/relayenv/env_context.go
// (EnvContext.Close releasing all host listeners and timers).
package netstatus

import (
	"sync"
	"time"

	"github.com/pathstate/engine/status"
)

// StatusListener is a nullary callback fired whenever the status record changes.
type StatusListener func()

// Unsubscribe removes a status subscription; idempotent.
type Unsubscribe func()

// ReloadFunc is invoked with the last parameters used for the store's most
// recent get, on reconnect/focus/interval triggers.
type ReloadFunc func()

// Options configures a Monitor at construction time.
type Options struct {
	ReloadOnReconnect bool
	ReloadOnFocus     bool
	ReloadInterval    time.Duration
	Reload            ReloadFunc
}

// Monitor owns the StoreStatus for one store and the host-signal listeners
// that drive it. Status notifications are entirely separate from the data
// subscriber bus (internal/bus): subscribing to status never triggers a
// data re-render and vice versa (spec.md §4.3).
type Monitor struct {
	mu        sync.Mutex
	status    status.Status
	listeners map[uint64]StatusListener
	nextID    uint64

	opts Options

	ticker    *time.Ticker
	tickerHalt chan struct{}

	closeOnce sync.Once
	closed    bool
}

// New creates a Monitor and starts its reload-interval ticker, if configured.
// It does not itself register with any host online/offline/focus signal
// source; the embedding host calls SetOnline/SetFocused as those events occur
// (spec.md treats the browser's online/focus events as external collaborators;
// this is the Go-native equivalent of "registers host-provided listeners").
func New(opts Options) *Monitor {
	m := &Monitor{
		opts:      opts,
		listeners: make(map[uint64]StatusListener),
	}
	if opts.ReloadInterval > 0 && opts.Reload != nil {
		m.ticker = time.NewTicker(opts.ReloadInterval)
		m.tickerHalt = make(chan struct{})
		go m.runTicker()
	}
	return m
}

func (m *Monitor) runTicker() {
	for {
		select {
		case <-m.ticker.C:
			// A tick buffered before Dispose must not reload afterwards.
			select {
			case <-m.tickerHalt:
				return
			default:
			}
			m.opts.Reload()
		case <-m.tickerHalt:
			return
		}
	}
}

// SetOnline reports an online/offline transition to the monitor. A
// transition from offline to online triggers Reload when ReloadOnReconnect
// is set (spec.md §4.3 "reloadOnReconnect").
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOffline := m.status.IsOffline
	m.status = m.status.Merge(status.Partial{IsOffline: status.BoolPtr(!online)})
	shouldReload := online && wasOffline && m.opts.ReloadOnReconnect && m.opts.Reload != nil
	m.mu.Unlock()

	m.fireStatusListeners()
	if shouldReload {
		m.opts.Reload()
	}
}

// SetFocused reports a focus-gain event. It triggers Reload when
// ReloadOnFocus is set (spec.md §4.3 "reloadOnFocus").
func (m *Monitor) SetFocused(focused bool) {
	if !focused {
		return
	}
	if m.opts.ReloadOnFocus && m.opts.Reload != nil {
		m.opts.Reload()
	}
}

// SetStatus merges partial into the current status and fires every status
// subscriber (spec.md §4.3 "setStatus(partial)").
func (m *Monitor) SetStatus(partial status.Partial) {
	m.mu.Lock()
	m.status = m.status.Merge(partial)
	m.mu.Unlock()
	m.fireStatusListeners()
}

// Status returns the current status snapshot.
func (m *Monitor) Status() status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SubscribeStatus registers a listener for status changes and returns an
// idempotent unsubscribe token.
func (m *Monitor) SubscribeStatus(listener StatusListener) Unsubscribe {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) fireStatusListeners() {
	m.mu.Lock()
	snapshot := make([]StatusListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		snapshot = append(snapshot, l)
	}
	m.mu.Unlock()

	for _, l := range snapshot {
		l()
	}
}

// Dispose detaches all host listeners and cancels any timers. Safe to call
// any number of times (spec.md §4.3 "dispose()").
func (m *Monitor) Dispose() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		if m.ticker != nil {
			m.ticker.Stop()
			close(m.tickerHalt)
		}
	})
}
