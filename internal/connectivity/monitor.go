// Package connectivity tracks whether the remote API is reachable.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultProbeTimeout bounds a single reachability check.
const DefaultProbeTimeout = 5 * time.Second

// Probe checks reachability; a nil error means online.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

// Monitor answers "online now?" and notifies subscribers on transitions. It
// starts out offline, so the first successful probe is reported as a change.
type Monitor struct {
	probe Probe

	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// New creates a Monitor over probe.
func New(probe Probe) *Monitor {
	return &Monitor{
		probe: probe,
		subs:  make(map[int]func(bool)),
	}
}

// IsOnline probes the remote. Any probe error, or a panic in the probe, counts
// as offline.
func (m *Monitor) IsOnline(ctx context.Context) (online bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connectivity probe panicked")
			online = false
			m.Set(false)
		}
	}()

	err := m.probe.Check(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("connectivity probe failed")
	}
	online = err == nil
	m.Set(online)
	return online
}

// Online returns the last observed state without probing.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the state reported by the platform, notifying subscribers when
// it differs from the previous one.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	log.Info().Bool("online", online).Msg("connectivity changed")
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for state transitions and returns its unsubscribe.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.IsOnline(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.IsOnline(ctx)
		}
	}
}

// HTTPProbe reports online when GET <BaseURL>/healthz answers 2xx.
type HTTPProbe struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProbe creates a probe for the server at baseURL.
func NewHTTPProbe(baseURL string) *HTTPProbe {
	return &HTTPProbe{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
		Timeout: DefaultProbeTimeout,
	}
}

func (p *HTTPProbe) Check(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
