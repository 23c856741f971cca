package notify

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/provider-matching/internal/models"
)

// Session represents a connected provider socket
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) Send(e models.BookingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(e)
}

// Registry holds provider sessions keyed by provider id
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry { return &Registry{sessions: make(map[string]*Session)} }

// Add registers a socket for a provider. A reconnect replaces the old
// session and closes its connection.
func (r *Registry) Add(providerID string, conn *websocket.Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[providerID]; ok {
		_ = old.conn.Close()
	}
	s := &Session{conn: conn}
	r.sessions[providerID] = s
	return s
}

// Remove drops the provider's entry only while it still points at the given
// session. The read loop of a replaced socket must not evict its replacement.
func (r *Registry) Remove(providerID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[providerID]; ok && cur == s {
		delete(r.sessions, providerID)
	}
}

// BookingChanged pushes the event to the provider the booking belongs to.
func (r *Registry) BookingChanged(e models.BookingEvent) error {
	r.mu.RLock()
	s, ok := r.sessions[e.ProviderID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(e); err != nil {
		log.Printf("ws push error: %v", err)
		return err
	}
	return nil
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
