package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/harun/toolwire/internal/observability"
	"github.com/harun/toolwire/pkg/mcpclient"
)

// Key identifies a session slot
type Key struct {
	Kind     mcpclient.Kind
	Endpoint string
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s", k.Kind, k.Endpoint)
}

// Factory builds an unconnected client for a key
type Factory func(kind mcpclient.Kind, endpoint string) (mcpclient.Client, error)

// Session is one live client together with its identity
type Session struct {
	ID       string
	Key      Key
	Client   mcpclient.Client
	OpenedAt time.Time
}

// Manager holds the session of a single client slot
type Manager struct {
	factory Factory

	mu      sync.Mutex
	current *Session
}

// New creates a Manager. A nil factory builds clients with mcpclient.New
// and default options.
func New(factory Factory) *Manager {
	observability.EnsureRegistered()

	if factory == nil {
		factory = func(kind mcpclient.Kind, endpoint string) (mcpclient.Client, error) {
			return mcpclient.New(kind, endpoint)
		}
	}
	return &Manager{factory: factory}
}

// NewWithOptions creates a Manager whose clients share opts
func NewWithOptions(opts ...mcpclient.Option) *Manager {
	return New(func(kind mcpclient.Kind, endpoint string) (mcpclient.Client, error) {
		return mcpclient.New(kind, endpoint, opts...)
	})
}

// Acquire returns a connected session for (kind, endpoint). The current
// session is reused when its key matches; otherwise it is closed first.
func (m *Manager) Acquire(ctx context.Context, kind mcpclient.Kind, endpoint string) (*Session, error) {
	key := Key{Kind: kind, Endpoint: strings.TrimSpace(endpoint)}
	if key.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Key == key {
		// Same slot: reconnect in place if the transport dropped.
		if err := m.current.Client.Connect(ctx); err != nil {
			m.closeCurrentLocked("reconnect failed")
			return nil, err
		}
		return m.current, nil
	}

	if m.current != nil {
		m.closeCurrentLocked("endpoint changed")
	}

	client, err := m.factory(key.Kind, key.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", key.Kind, err)
	}

	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		id = fmt.Sprintf("s-%d", time.Now().UnixNano())
	}

	m.current = &Session{
		ID:       id,
		Key:      key,
		Client:   client,
		OpenedAt: time.Now(),
	}
	observability.SetActiveSessions(1)

	log.Info().
		Str("session_id", id).
		Str("transport", string(key.Kind)).
		Str("endpoint", key.Endpoint).
		Msg("Session opened")

	return m.current, nil
}

// Current returns the live session, or nil
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the live session. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCurrentLocked("shutdown")
	return nil
}

func (m *Manager) closeCurrentLocked(reason string) {
	if m.current == nil {
		return
	}

	sess := m.current
	m.current = nil
	observability.SetActiveSessions(0)

	if err := sess.Client.Close(); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("Error closing session")
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("endpoint", sess.Key.Endpoint).
		Str("reason", reason).
		Dur("age", time.Since(sess.OpenedAt)).
		Msg("Session closed")
}
