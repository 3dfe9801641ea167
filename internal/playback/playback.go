// Package playback serializes audio and video playback across the
// message list: at most one media item owns the shared playback
// resource at a time.
package playback

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/murmurchat/murmur/internal/bus"
	"go.uber.org/zap"
)

// State is a playback focus state.
type State string

const (
	Idle    State = "IDLE"
	Playing State = "PLAYING"
	Paused  State = "PAUSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:    {Playing},
	Playing: {Playing, Paused, Idle},
	Paused:  {Playing, Idle},
}

// Resource is a loaded media resource. Exactly one may exist at a time,
// and only the Manager touches it.
type Resource interface {
	Play() error
	Pause() error
	Resume() error
	Unload()
	Duration() time.Duration
}

// Loader acquires media resources. onEnd is invoked when the media
// finishes naturally; Load must return an unloaded-on-failure resource
// or an error, never both.
type Loader interface {
	Load(ctx context.Context, uri string, onEnd func()) (Resource, error)
}

// VoiceHolder and VideoHolder build the holder ids used for message
// media, so a fullscreen video competes for focus like any voice note.
func VoiceHolder(messageID string) string { return "voice:" + messageID }

// VideoHolder returns the holder id for a message's video.
func VideoHolder(messageID string) string { return "video:" + messageID }

// Unsupported is a Loader for headless builds without a media backend.
type Unsupported struct{}

func (Unsupported) Load(context.Context, string, func()) (Resource, error) {
	return nil, fmt.Errorf("media playback not available")
}

// Manager enforces the single-holder invariant: starting one item's
// playback stops and unloads whatever was previously active.
type Manager struct {
	mu     sync.Mutex
	loader Loader
	bus    *bus.Bus
	logger *zap.Logger

	state  State
	holder string
	res    Resource
}

// NewManager creates a manager starting in Idle.
func NewManager(loader Loader, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		loader: loader,
		bus:    b,
		logger: logger,
		state:  Idle,
	}
}

// Play makes id the focus holder, implicitly stopping and unloading the
// previous holder's resource before loading the new one. A failed load
// lands in Idle with nothing leaked.
func (m *Manager) Play(ctx context.Context, id, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.holder == id && m.state == Playing {
		return nil
	}

	// Release the previous holder first; never two loaded resources.
	m.releaseLocked()

	res, err := m.loader.Load(ctx, uri, func() { m.finished(id) })
	if err != nil {
		m.logger.Warn("media load failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("load %s: %w", id, err)
	}
	if err := res.Play(); err != nil {
		res.Unload()
		m.logger.Warn("media play failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("play %s: %w", id, err)
	}

	m.res = res
	m.holder = id
	if err := m.transitionLocked(Playing); err != nil {
		return err
	}
	return nil
}

// Pause pauses the current holder. No-op when nothing is playing.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Playing || m.res == nil {
		return nil
	}
	if err := m.res.Pause(); err != nil {
		return fmt.Errorf("pause %s: %w", m.holder, err)
	}
	return m.transitionLocked(Paused)
}

// Resume resumes the paused holder. No-op when nothing is paused.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Paused || m.res == nil {
		return nil
	}
	if err := m.res.Resume(); err != nil {
		return fmt.Errorf("resume %s: %w", m.holder, err)
	}
	return m.transitionLocked(Playing)
}

// Stop releases the resource from any state, e.g. when the conversation
// screen is torn down.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

// Holder returns the current focus holder id ("" when idle) and state.
func (m *Manager) Holder() (string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder, m.state
}

// ProbeDuration loads uri transiently to read its duration and unloads
// it immediately, without disturbing the current focus holder.
func (m *Manager) ProbeDuration(ctx context.Context, uri string) (time.Duration, error) {
	res, err := m.loader.Load(ctx, uri, nil)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", uri, err)
	}
	defer res.Unload()
	return res.Duration(), nil
}

// finished is the natural-completion edge: the holder's media ended.
func (m *Manager) finished(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder != id {
		return
	}
	m.releaseLocked()
}

// releaseLocked unloads the current resource and returns to Idle.
// Callers hold the lock.
func (m *Manager) releaseLocked() {
	if m.res != nil {
		m.res.Unload()
		m.res = nil
	}
	prev := m.holder
	m.holder = ""
	if m.state != Idle {
		m.state = Idle
		m.publish(prev, Idle)
	}
}

// transitionLocked moves to a new state, enforcing the transition table.
// Callers hold the lock.
func (m *Manager) transitionLocked(to State) error {
	if !slices.Contains(validTransitions[m.state], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.state, to)
	}
	m.state = to
	m.publish(m.holder, to)
	return nil
}

func (m *Manager) publish(holder string, state State) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      "playback.status_changed",
		Timestamp: time.Now(),
		Payload:   StatusChange{Holder: holder, State: state},
	})
}

// StatusChange is the payload for playback status events.
type StatusChange struct {
	Holder string
	State  State
}
